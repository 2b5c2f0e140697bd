package ddns

import (
	"net/netip"
	"strings"
)

// IsIPv4 reports whether s, after trimming surrounding whitespace,
// parses as an IPv4 dotted-quad address.
// IPv6 addresses (including IPv4-in-IPv6 forms), hostnames,
// and strings with embedded noise are rejected.
func IsIPv4(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	return err == nil && addr.Is4()
}
