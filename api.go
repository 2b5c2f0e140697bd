package ddns

import (
	"context"
	"net/netip"
)

// Resolver discovers the machine's current public IPv4 address.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider updates the DNS record for a single host within the configured domain.
// Implementations must be safe to call once per host in sequence;
// an error for one host must not poison later calls.
type Provider interface {
	UpdateRecord(ctx context.Context, host string, addr netip.Addr) error
}

// Cache stores the last IP address an update round was attempted for.
// Last returns an empty string when no address has been recorded yet.
type Cache interface {
	Last() (string, error)
	Store(ip string) error
}
