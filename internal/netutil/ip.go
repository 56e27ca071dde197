package netutil

import (
	"net"
)

// LocalIP returns the first non-loopback unicast IPv4 address of this host,
// preferring IPv4 because that is what the config service's grayscale rules
// match against. Falls back to a global IPv6 address, and finally to the
// empty string when nothing qualifies (the ip query parameter is optional).
//
// The result is a best-effort hint: multi-homed hosts may prefer to pin the
// address explicitly via the client option.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	var v6 string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
		if v6 == "" {
			v6 = ipNet.IP.String()
		}
	}
	return v6
}
