// Package flowcontrol gates outbound requests to the config service.
//
// Limiter is a token-bucket rate limit applied per request class (one for
// config fetches, one for long polls). Backoff is an exponential-with-cap
// retry schedule that resets on success. Both are small wrappers over
// ecosystem implementations so the rest of the library deals in the exact
// semantics the sync pipeline needs: a bounded wait that never drops a wake,
// and a Fail/Success state machine.
package flowcontrol
