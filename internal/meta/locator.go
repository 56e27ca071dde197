package meta

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/wire"
)

// ErrNoAvailableService is returned when the meta server's retry budget is
// exhausted without producing a non-empty service list.
const ErrNoAvailableService = sentinel.Error("no available config service")

// fetchRetries is how many times one GetConfigServices call asks the meta
// server before giving up.
const fetchRetries = 2

// retrySleep separates the attempts of one GetConfigServices call.
const retrySleep = time.Second

// ServicesFetcher is the transport capability the locator needs. Satisfied
// by *transport.Client; tests substitute a stub.
type ServicesFetcher interface {
	GetServices(ctx context.Context, metaURL, appID, clientIP string) ([]wire.ServiceInstance, error)
}

// Locator resolves the current list of config-service endpoints.
// It is safe for concurrent use by multiple goroutines.
//
// The list is fetched on first use and then refreshed by a background
// goroutine at refreshInterval. Callers must tolerate order and membership
// changes between calls.
type Locator struct {
	metaURL         string
	appID           string
	clientIP        string
	refreshInterval time.Duration
	fetcher         ServicesFetcher

	// services holds the last successfully fetched list, swapped atomically
	// so GetConfigServices reads are wait-free once populated.
	services atomic.Pointer[[]wire.ServiceInstance]

	// refresherStarted gates the background refresher: the first successful
	// fetch CAS-starts it exactly once.
	refresherStarted atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLocator creates a Locator backed by the meta server at metaURL.
// Panics if metaURL is empty or refreshInterval <= 0; both come from
// validated configuration, so violations are programmer errors.
func NewLocator(fetcher ServicesFetcher, metaURL, appID, clientIP string, refreshInterval time.Duration) *Locator {
	if metaURL == "" {
		panic("confsync: locator meta URL must not be empty")
	}
	if refreshInterval <= 0 {
		panic(fmt.Sprintf("confsync: locator refresh interval must be greater than 0, got %s", refreshInterval))
	}
	return &Locator{
		metaURL:         metaURL,
		appID:           appID,
		clientIP:        clientIP,
		refreshInterval: refreshInterval,
		fetcher:         fetcher,
		stopCh:          make(chan struct{}),
	}
}

// GetConfigServices returns the current endpoint list. The returned slice is
// a copy; callers may reorder it freely.
//
// On first use (or after the cache was emptied by a refresh returning an
// empty list) the meta server is queried synchronously with a small retry
// budget; exhausting it yields ErrNoAvailableService.
func (l *Locator) GetConfigServices(ctx context.Context) ([]wire.ServiceInstance, error) {
	if cached := l.services.Load(); cached != nil && len(*cached) > 0 {
		return copyServices(*cached), nil
	}

	var lastErr error
	for attempt := 0; attempt < fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retrySleep):
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-l.stopCh:
				return nil, ErrNoAvailableService
			}
		}
		services, err := l.fetcher.GetServices(ctx, l.metaURL, l.appID, l.clientIP)
		if err != nil {
			lastErr = err
			continue
		}
		if len(services) == 0 {
			lastErr = fmt.Errorf("meta server %s returned an empty service list", l.metaURL)
			continue
		}
		l.store(services)
		l.startRefresher()
		return copyServices(services), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoAvailableService, lastErr)
}

// Stop terminates the background refresher. Idempotent.
func (l *Locator) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// store publishes a fresh service list.
func (l *Locator) store(services []wire.ServiceInstance) {
	cp := copyServices(services)
	l.services.Store(&cp)
}

// startRefresher launches the periodic refresh goroutine on first success.
func (l *Locator) startRefresher() {
	if !l.refresherStarted.CompareAndSwap(false, true) {
		return
	}
	go l.refreshLoop()
}

// refreshLoop re-fetches the service list at refreshInterval until Stop.
// A failed refresh keeps the previous list: a reachable-but-stale endpoint
// list beats an empty one.
func (l *Locator) refreshLoop() {
	ticker := time.NewTicker(l.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), retrySleep*10)
		services, err := l.fetcher.GetServices(ctx, l.metaURL, l.appID, l.clientIP)
		cancel()
		if err != nil {
			logging.Logger().Warn("config service list refresh failed; keeping previous list",
				"metaURL", l.metaURL, "error", err)
			continue
		}
		if len(services) == 0 {
			logging.Logger().Warn("meta server returned an empty service list; keeping previous list",
				"metaURL", l.metaURL)
			continue
		}
		l.store(services)
	}
}

// Order returns the endpoints in fetch order: a shuffled copy of services,
// with the preferred endpoint (if non-empty and present or not) moved to the
// head. The preferred endpoint is a weak hint from the last long-poll
// response; callers clear it after one consumption.
func Order(services []wire.ServiceInstance, preferredURL string) []wire.ServiceInstance {
	ordered := copyServices(services)
	rand.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	if preferredURL == "" {
		return ordered
	}
	for i, s := range ordered {
		if s.HomepageURL == preferredURL {
			ordered[0], ordered[i] = ordered[i], ordered[0]
			return ordered
		}
	}
	// The hint is not in the current list (the instance may have just
	// deregistered); still try it first, once.
	return append([]wire.ServiceInstance{{HomepageURL: preferredURL}}, ordered...)
}

// copyServices returns a defensive copy of services.
func copyServices(services []wire.ServiceInstance) []wire.ServiceInstance {
	cp := make([]wire.ServiceInstance, len(services))
	copy(cp, services)
	return cp
}
