// Package netutil provides the network helpers confsync needs: detecting the
// local unicast address reported to the config service for server-side
// grayscale rules.
package netutil
