package ddns

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/rs/zerolog"
)

// DefaultIPServices are the public IP echo services queried, in order,
// when no resolver option is given.
var DefaultIPServices = []string{
	"https://ifconfig.me/ip",
	"https://ipv4.icanhazip.com",
	"https://api.ipify.org",
}

// New returns a client which keeps host records within domain pointed at the
// machine's current public IPv4 address.
// A provider option such as [UsingNamecheap] or [UsingCloudflare] is required.
func New(domain string, options ...clientOption) (DDNSClient, error) {
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	c := &client{
		Resolver: WebResolver(DefaultIPServices...),
		domain:   domain,
		logger:   zerolog.Nop(),
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingNamecheap or similar")
	}
	if len(c.hosts) == 0 {
		c.hosts = []string{"@"}
	}
	if c.cache == nil {
		c.cache = &memoryCache{}
	}

	// these let us propagate the logger and domain to dependencies that use them
	// if WithLogger was called before all of the dependencies were registered
	withLogger(c.logger)(c)
	withDomain(c.domain)(c)
	return c, nil
}

type clientOption func(*client) error

// UsingProvider registers a custom DNS provider.
func UsingProvider(provider Provider) clientOption {
	return func(c *client) error {
		c.Provider = provider
		return nil
	}
}

// UsingResolver sets the public IP discovery method.
// A nil resolver restores the default.
func UsingResolver(resolver Resolver) clientOption {
	return func(c *client) error {
		if resolver == nil {
			resolver = WebResolver(DefaultIPServices...)
		}
		c.Resolver = resolver
		return nil
	}
}

// UsingWebResolver sets public IP discovery to query the given web services in order.
func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *client) error {
		c.Resolver = WebResolver(serviceURL...)
		return nil
	}
}

// WithHosts sets the host records to update within the domain.
// Empty entries are dropped. Use "@" for the bare domain; it is also the default.
func WithHosts(host ...string) clientOption {
	return func(c *client) error {
		var hosts []string
		for _, h := range host {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			hosts = append(hosts, h)
		}
		c.hosts = hosts
		return nil
	}
}

// WithCache sets the store for the last address an update round was attempted for.
// The default is an in-memory cache which does not survive restarts;
// use [FileCache] to persist across restarts.
func WithCache(cache Cache) clientOption {
	return func(c *client) error {
		if cache == nil {
			cache = &memoryCache{}
		}
		c.cache = cache
		return nil
	}
}

// WithLogger sets the logger used by the client and its registered dependencies.
func WithLogger(logger zerolog.Logger) clientOption {
	return func(c *client) error {
		c.logger = logger
		return nil
	}
}

func withLogger(logger zerolog.Logger) clientOption {
	return func(c *client) error {
		type setLogger interface {
			SetLogger(zerolog.Logger)
		}

		switch p := c.Provider.(type) {
		case *namecheapProvider:
			p.logger = logger
		case *cloudflareProvider:
			p.logger = logger
		case setLogger:
			p.SetLogger(logger)
		}

		switch r := c.Resolver.(type) {
		case *webResolver:
			r.logger = logger
		case *dnsResolver:
			r.logger = logger
		case setLogger:
			r.SetLogger(logger)
		}

		return nil
	}
}

func withDomain(domain string) clientOption {
	return func(c *client) error {
		switch p := c.Provider.(type) {
		case *namecheapProvider:
			p.domain = domain
		case *cloudflareProvider:
			p.domain = domain
		}
		return nil
	}
}

// UsingHTTPClient sets the http client used for discovery and update requests.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		switch r := c.Resolver.(type) {
		case *webResolver:
			r.httpClient = httpclient
		case setHTTPClient:
			r.SetHTTPClient(httpclient)
		}
		switch p := c.Provider.(type) {
		case *namecheapProvider:
			p.httpClient = httpclient
		case *cloudflareProvider:
			cloudflare.HTTPClient(httpclient)(p.api)
		case setHTTPClient:
			p.SetHTTPClient(httpclient)
		}
		return nil
	}
}

type DDNSClient interface {
	Run(ctx context.Context) error
}

type client struct {
	Resolver
	Provider
	cache  Cache
	logger zerolog.Logger
	domain string
	hosts  []string
}

// Run performs one update cycle.
//
// A discovery failure is returned without touching the cache.
// When the discovered address matches the cached one, no update calls are made.
// Otherwise every configured host is updated in order;
// a failed host is logged and the remaining hosts are still attempted.
// The new address is cached once the whole round has been attempted,
// whether or not every host succeeded,
// so the next cycle does not re-run updates for an address we already submitted.
func (c *client) Run(ctx context.Context) error {
	addr, err := c.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("error resolving public IP: %w", err)
	}
	current := addr.String()
	c.logger.Info().Str("ip", current).Msg("current public IPv4")

	last, err := c.cache.Last()
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read cached IP, assuming none")
		last = ""
	}
	if last == current {
		c.logger.Info().Str("ip", current).Msg("IP unchanged, skipping updates")
		return nil
	}

	for _, host := range c.hosts {
		if err := c.UpdateRecord(ctx, host, addr); err != nil {
			c.logger.Warn().Err(err).Str("host", host).Msg("update failed, continuing with remaining hosts")
		}
	}

	if err := c.cache.Store(current); err != nil {
		c.logger.Warn().Err(err).Str("ip", current).Msg("failed to persist last IP")
	}
	return nil
}

// RunDaemon starts ddnsClient as a goroutine.
// It runs one cycle immediately and then one per interval until ctx is done.
//
// A nil logger for a DDNSClient supplied by this library indicates that the
// daemon should log cycle errors to the logger configured in the client.
// Otherwise the default is to discard log messages.
func RunDaemon(ddnsClient DDNSClient, ctx context.Context, interval time.Duration, logger *zerolog.Logger) {
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	var l zerolog.Logger
	switch {
	case logger != nil:
		l = *logger
	default:
		if c, ok := ddnsClient.(*client); ok {
			l = c.logger
		} else {
			l = zerolog.Nop()
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := ddnsClient.Run(ctx); err != nil {
				l.Warn().Err(err).Msg("update cycle failed, will retry next interval")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// preview returns at most n bytes of s for log output.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
