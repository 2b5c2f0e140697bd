package ddns

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// FromString constructs a resolver that always returns the fixed IPv4 address addr.
func FromString(addr string) (Resolver, error) {
	if !IsIPv4(addr) {
		return nil, fmt.Errorf("unable to parse %q as an IPv4 address", addr)
	}
	return stringResolver(strings.TrimSpace(addr)), nil
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	return netip.MustParseAddr(string(s)), nil
}
