package ddns_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"

	"github.com/ncdyn/ddns"
	"golang.org/x/net/context"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "192.168.2.1\n")
	}))
	defer srv.Close()
	wr := ddns.WebResolver(srv.URL)
	res, err := wr.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Request failed: %s", err)
	}

	if expected, got := netip.MustParseAddr("192.168.2.1"), res; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
}

// countingServer returns a test server that serves body and counts requests.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	var mu sync.Mutex
	hits := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*hits++
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestFallbackOrder(t *testing.T) {
	bad, badHits := countingServer(t, http.StatusInternalServerError, "oops")
	garbage, garbageHits := countingServer(t, http.StatusOK, "<html>definitely not an ip</html>")
	good, goodHits := countingServer(t, http.StatusOK, "192.168.2.5")
	spare, spareHits := countingServer(t, http.StatusOK, "10.0.0.10")

	wr := ddns.WebResolver(bad.URL, garbage.URL, good.URL, spare.URL)
	res, err := wr.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if expected, got := netip.MustParseAddr("192.168.2.5"), res; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	if *badHits != 1 || *garbageHits != 1 || *goodHits != 1 {
		t.Fatalf("Expected one hit per service up to the first success; got %d, %d, %d", *badHits, *garbageHits, *goodHits)
	}
	if *spareHits != 0 {
		t.Fatalf("Expected services after the first success to be skipped; got %d hits", *spareHits)
	}
}

func TestShortCircuit(t *testing.T) {
	first, firstHits := countingServer(t, http.StatusOK, "192.168.2.1")
	second, secondHits := countingServer(t, http.StatusOK, "192.168.2.2")

	wr := ddns.WebResolver(first.URL, second.URL)
	res, err := wr.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if expected, got := netip.MustParseAddr("192.168.2.1"), res; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	if *firstHits != 1 || *secondHits != 0 {
		t.Fatalf("Expected only the first service to be contacted; got %d, %d", *firstHits, *secondHits)
	}
}

func TestAllFail(t *testing.T) {
	ipv6, ipv6Hits := countingServer(t, http.StatusOK, "2001:db8::1")
	errsrv, errHits := countingServer(t, http.StatusBadGateway, "")
	garbage, garbageHits := countingServer(t, http.StatusOK, "a")

	wr := ddns.WebResolver(ipv6.URL, errsrv.URL, garbage.URL)
	_, err := wr.Resolve(context.Background())
	if err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
	if *ipv6Hits != 1 || *errHits != 1 || *garbageHits != 1 {
		t.Fatalf("Expected every service to be contacted exactly once; got %d, %d, %d", *ipv6Hits, *errHits, *garbageHits)
	}
}

func TestFiltersEmptyAndDuplicateEntries(t *testing.T) {
	srv, hits := countingServer(t, http.StatusBadGateway, "")

	wr := ddns.WebResolver("", srv.URL, "  ", srv.URL)
	_, err := wr.Resolve(context.Background())
	if err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
	if *hits != 1 {
		t.Fatalf("Expected duplicate entries to be filtered; got %d hits", *hits)
	}
}

func TestTrimsEntries(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, "192.168.2.1")

	wr := ddns.WebResolver(" " + srv.URL + " ")
	res, err := wr.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if expected, got := netip.MustParseAddr("192.168.2.1"), res; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	if *hits != 1 {
		t.Fatalf("Expected 1 hit; got %d", *hits)
	}
}

func TestNoServices(t *testing.T) {
	wr := ddns.WebResolver()
	_, err := wr.Resolve(context.Background())
	if err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
}
