package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WebResolver constructs a resolver which uses external web services to look up the public IPv4 address.
//
// Each serviceURL must speak http and return a success status,
// with a bare IPv4 address as the response body.
// Services are tried strictly in the order given:
// the first body that parses as IPv4 wins and the remaining services are not contacted.
// Deterministic order keeps the preferred service authoritative and the load on the others minimal.
// A service that fails, returns a non-success status,
// or returns an unexpected body is skipped with a warning.
// Empty and duplicate entries are filtered out.
//
// The recommended approach is to run your own service over https.
func WebResolver(serviceURL ...string) Resolver {
	wr := &webResolver{logger: zerolog.Nop()}
	seen := make(map[string]bool, len(serviceURL))
	for _, u := range serviceURL {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		wr.serviceURLs = append(wr.serviceURLs, u)
	}
	return wr
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []string
	logger      zerolog.Logger
}

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, errors.New("no external IP lookup services were provided")
	}
	for _, u := range wr.serviceURLs {
		wr.logger.Debug().Str("service", u).Msg("trying IP lookup service")
		addr, err := wr.lookup(ctx, u)
		if err != nil {
			wr.logger.Warn().Err(err).Str("service", u).Msg("IP lookup service failed")
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, errors.New("all IP providers failed or returned invalid IPv4")
}

func (wr *webResolver) lookup(ctx context.Context, serviceURL string) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the caller supplied context.TODO or context.Background
	// using http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading response body: %w", err)
	}
	ipstring := strings.TrimSpace(string(body))
	if !IsIPv4(ipstring) {
		return netip.Addr{}, fmt.Errorf("response body is not an IPv4 address: %q", preview(string(body), 80))
	}
	return netip.MustParseAddr(ipstring), nil
}
