package netutil_test

import (
	"net"
	"testing"

	"github.com/giantswarm/confsync/internal/netutil"
)

func TestLocalIPIsWellFormedWhenPresent(t *testing.T) {
	t.Parallel()

	got := netutil.LocalIP()
	if got == "" {
		// Hosts without a global unicast address are legal; the ip query
		// parameter is simply omitted then.
		t.Skip("host has no non-loopback address")
	}

	ip := net.ParseIP(got)
	if ip == nil {
		t.Fatalf("LocalIP() = %q, not a parseable IP", got)
	}
	if ip.IsLoopback() {
		t.Errorf("LocalIP() = %q, must not be a loopback address", got)
	}
}
