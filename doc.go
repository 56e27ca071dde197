// Package confsync is a client library for a distributed configuration
// center. It exposes a read-only, eventually consistent view of remote
// configuration keyed by namespace and propagates server-side changes into
// the process with sub-second latency under normal conditions.
//
// A single long-poll worker multiplexes every watched namespace over one
// outstanding HTTP request; a per-namespace fallback timer covers degraded
// long polling. Published snapshots are immutable and swapped atomically, so
// reads on the hot path are wait-free.
//
// # Basic Usage
//
//	client := confsync.NewClient(
//	    confsync.WithAppID("orders"),
//	    confsync.WithMetaServer("http://meta.example.com:8080"),
//	)
//	defer client.Close()
//
//	cfg, err := client.GetConfig(ctx, "application")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	timeout := cfg.GetDuration("request.timeout", 5*time.Second)
//
// # Change Notification
//
// Listeners receive one event per snapshot publication, with the full set of
// added, modified and deleted keys:
//
//	cfg.AddChangeListener(confsync.ChangeListenerFunc(func(e *confsync.ChangeEvent) {
//	    for _, c := range e.Changes {
//	        log.Printf("%s %s: %q -> %q", c.Type, c.Key, c.OldValue, c.NewValue)
//	    }
//	}))
//
// Events for one namespace are delivered in publication order. A listener
// that panics is isolated and logged; it never blocks the other listeners.
//
// # Availability
//
// Every successfully published snapshot is also written to a local cache
// file. When the config service is unreachable at startup, GetConfig serves
// the cached snapshot instead of failing, and the background machinery keeps
// retrying until the service returns.
package confsync
