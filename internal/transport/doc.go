// Package transport is the HTTP boundary of the library. It issues the three
// request kinds the protocol needs — config fetch, notification long poll,
// and meta-server service discovery — and maps protocol-level statuses
// (304, 404) onto sentinel errors so callers never inspect raw responses.
//
// Two separate resty clients back the request kinds: the long poll needs a
// read timeout that strictly exceeds the server's hold timeout, while fetches
// want to fail fast.
package transport
