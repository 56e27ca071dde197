// Package notify implements the long-poll notifier: one worker goroutine
// multiplexing every watched namespace over a single outstanding HTTP long
// poll, waking the affected repositories when the service reports changes.
//
// The notifier holds repositories as non-owning references behind the
// core.NotifyTarget capability; repositories own their lifecycle and
// unregister themselves on Stop.
package notify
