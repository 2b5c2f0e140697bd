package ddns

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc("myip.opendns.com.", handler)
	srv := &dns.Server{PacketConn: pc, Handler: mux}
	go srv.ActivateAndServe()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSResolverResolve(t *testing.T) {
	addr := startTestDNSServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		rr, err := dns.NewRR("myip.opendns.com. 60 IN A 203.0.113.9")
		require.NoError(t, err)
		m.Answer = append(m.Answer, rr)
		_ = w.WriteMsg(m)
	})

	r := DNSResolver(addr)
	got, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", got.String())
}

func TestDNSResolverNoAnswer(t *testing.T) {
	addr := startTestDNSServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		_ = w.WriteMsg(m)
	})

	r := DNSResolver(addr)
	_, err := r.Resolve(context.Background())
	assert.Error(t, err)
}
