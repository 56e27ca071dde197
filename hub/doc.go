// Package hub implements the server-side notification counterpart of the
// client library: a long-poll endpoint that parks watchers until a
// configuration release is published for one of their namespaces, or answers
// 304 when the hold expires quietly.
//
// A Hub keeps an in-memory notification-id table per watch key
// (appId+cluster+namespace) and an index of parked watchers per key. Publish
// bumps the table and releases every watcher whose vector is behind. Each
// watcher completes exactly once: release, hold expiry and client disconnect
// all detach it atomically from every index entry.
//
// The HTTP surface (see NewHandler) mirrors the protocol the client's
// notifier speaks: GET /notifications/v2 with the appId, cluster and
// notifications query parameters.
package hub
