package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(remoteAddr string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/telegram", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestRemoteAddrExtractor(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
		wantErr    bool
	}{
		{name: "IPv4 with port", remoteAddr: "192.168.1.1:54321", want: "192.168.1.1"},
		{name: "IPv6 with port", remoteAddr: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "bare IPv4", remoteAddr: "127.0.0.1", want: "127.0.0.1"},
		{name: "bracketed IPv6", remoteAddr: "[::1]", want: "::1"},
		{name: "IPv4-mapped IPv6", remoteAddr: "[::ffff:10.0.0.7]:443", want: "10.0.0.7"},
		{name: "garbage", remoteAddr: "not-an-ip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&RemoteAddrExtractor{}).ExtractIP(newRequest(tt.remoteAddr, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemoteAddrExtractor_IgnoresHeaders(t *testing.T) {
	got, err := (&RemoteAddrExtractor{}).ExtractIP(newRequest("203.0.113.9:1234", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
		"X-Real-IP":       "5.6.7.8",
	}))
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", got)
}

func TestTrustedProxyExtractor(t *testing.T) {
	cfg := TrustedProxyConfig{
		Enabled:      true,
		AllowedCIDRs: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	}
	extractor := NewTrustedProxyExtractor(cfg)

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "trusted proxy with X-Forwarded-For",
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"},
			want:       "198.51.100.7",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			want:       "198.51.100.8",
		},
		{
			name:       "trusted proxy with malformed headers uses peer",
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "nope"},
			want:       "10.1.2.3",
		},
		{
			name:       "untrusted peer cannot spoof",
			remoteAddr: "203.0.113.50:4444",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1"},
			want:       "203.0.113.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractor.ExtractIP(newRequest(tt.remoteAddr, tt.headers))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrustedProxyExtractor_Disabled(t *testing.T) {
	extractor := NewTrustedProxyExtractor(TrustedProxyConfig{Enabled: false})
	got, err := extractor.ExtractIP(newRequest("10.1.2.3:5555", map[string]string{"X-Forwarded-For": "1.1.1.1"}))
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", got)
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"192.168.1.1", " 10.0.0.0/8 ", "", "2001:db8::/32", "172.16.5.4/12"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("192.168.1.1/32"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
		netip.MustParsePrefix("172.16.0.0/12"),
	}, prefixes)

	_, err = ParseTrustedProxies([]string{"10.0.0.0/8", "proxy.internal"})
	assert.ErrorContains(t, err, "proxy.internal")
}

func TestLoadTrustedProxyConfig(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("RATELIMIT_TRUST_PROXY", "")
		cfg, err := LoadTrustedProxyConfig()
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
		assert.IsType(t, &RemoteAddrExtractor{}, NewIPExtractor(cfg))
	})

	t.Run("enabled with proxies", func(t *testing.T) {
		t.Setenv("RATELIMIT_TRUST_PROXY", "true")
		t.Setenv("RATELIMIT_TRUSTED_PROXIES", "10.0.0.1,172.16.0.0/12")
		cfg, err := LoadTrustedProxyConfig()
		require.NoError(t, err)
		assert.Len(t, cfg.AllowedCIDRs, 2)
		assert.True(t, cfg.IsTrusted("172.20.1.1:80"))
		assert.False(t, cfg.IsTrusted("10.0.0.2:80"))
		assert.IsType(t, &TrustedProxyExtractor{}, NewIPExtractor(cfg))
	})

	t.Run("enabled without proxies fails", func(t *testing.T) {
		t.Setenv("RATELIMIT_TRUST_PROXY", "true")
		t.Setenv("RATELIMIT_TRUSTED_PROXIES", "")
		_, err := LoadTrustedProxyConfig()
		assert.Error(t, err)
	})
}
