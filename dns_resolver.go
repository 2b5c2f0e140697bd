package ddns

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// DNSResolver constructs a resolver which discovers the public IPv4 address
// by querying a DNS server that echoes the client address back as an A record,
// such as OpenDNS with myip.opendns.com.
// server may omit the port, in which case 53 is assumed.
// This works on networks where outbound http to IP echo services is filtered.
func DNSResolver(server string) Resolver {
	return &dnsResolver{
		server: server,
		name:   "myip.opendns.com",
		logger: zerolog.Nop(),
	}
}

type dnsResolver struct {
	server string
	name   string
	logger zerolog.Logger
}

// Resolve implements ddns.Resolver.
func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	server := r.server
	if !strings.Contains(server, ":") {
		server += ":53"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(r.name), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: 10 * time.Second}
	r.logger.Debug().Str("server", server).Str("name", r.name).Msg("querying DNS for public IP")
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns lookup against %s failed: %w", server, err)
	}

	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok && addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("no IPv4 answer from %s for %s", server, r.name)
}
