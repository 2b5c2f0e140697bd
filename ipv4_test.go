package ddns_test

import (
	"testing"

	"github.com/ncdyn/ddns"
	"github.com/stretchr/testify/assert"
)

func TestIsIPv4(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain", "203.0.113.7", true},
		{"surrounding whitespace", "  203.0.113.7\n", true},
		{"loopback", "127.0.0.1", true},
		{"broadcast", "255.255.255.255", true},
		{"zero", "0.0.0.0", true},
		{"ipv6", "2001:db8::1", false},
		{"ipv4 in ipv6", "::ffff:203.0.113.7", false},
		{"hostname", "example.com", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"garbage", "not an ip", false},
		{"octet out of range", "256.1.1.1", false},
		{"too few octets", "10.0.0", false},
		{"trailing text", "203.0.113.7 extra", false},
		{"cidr notation", "203.0.113.0/24", false},
		{"port suffix", "203.0.113.7:80", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ddns.IsIPv4(tt.in), "IsIPv4(%q)", tt.in)
		})
	}
}
