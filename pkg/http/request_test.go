package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		trusted    []string
		want       string
	}{
		{
			name:       "direct connection ignores forwarding headers",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4, 5.6.7.8",
			realIP:     "192.168.1.1",
			trusted:    []string{"10.0.0.0/8", "127.0.0.1/32"},
			want:       "203.0.113.10",
		},
		{
			name:       "trusted proxy uses first forwarded address",
			remoteAddr: "10.0.0.5:54321",
			xff:        "203.0.113.42, 203.0.113.43, 10.0.0.5",
			trusted:    []string{"10.0.0.0/8"},
			want:       "203.0.113.42",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.5:54321",
			realIP:     "203.0.113.42",
			trusted:    []string{"10.0.0.0/8"},
			want:       "203.0.113.42",
		},
		{
			name:       "ipv6 proxy",
			remoteAddr: "[::1]:54321",
			xff:        "2001:db8::1",
			trusted:    []string{"::1/128"},
			want:       "2001:db8::1",
		},
		{
			name:       "no trusted proxies",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			want:       "203.0.113.10",
		},
		{
			name:       "invalid cidr ranges are ignored",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			trusted:    []string{"invalid-cidr-range", "also-invalid"},
			want:       "203.0.113.10",
		},
		{
			name:       "spoofed localhost from untrusted peer",
			remoteAddr: "203.0.113.10:54321",
			xff:        "127.0.0.1, 203.0.113.10",
			trusted:    []string{"10.0.0.0/8"},
			want:       "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			resolver := pkghttp.NewClientIPResolver(tt.trusted)
			assert.Equal(t, tt.want, resolver.ClientIP(req))

			key, err := resolver.KeyFunc(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestClientIP_NilResolver(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	var resolver *pkghttp.ClientIPResolver
	assert.Equal(t, "203.0.113.10", resolver.ClientIP(req))
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		PIN string `json:"pin"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"pin":"1234"}`))
		var p payload
		require.NoError(t, pkghttp.DecodeJSON(req, &p))
		assert.Equal(t, "1234", p.PIN)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var p payload
		assert.Error(t, pkghttp.DecodeJSON(req, &p))
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"pin":"1234","admin":true}`))
		var p payload
		assert.Error(t, pkghttp.DecodeJSON(req, &p))
	})

	t.Run("trailing object", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"pin":"1234"}{"pin":"0000"}`))
		var p payload
		assert.Error(t, pkghttp.DecodeJSON(req, &p))
	})
}
