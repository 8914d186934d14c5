package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"notify-relay/pkg/config"
)

// IPExtractor picks the client identity used as the rate-limit key.
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP peer address. It cannot be spoofed and
// is the default when the relay is not behind a proxy.
type RemoteAddrExtractor struct{}

// ExtractIP strips the port from r.RemoteAddr.
//
// Examples:
//   - "192.168.1.1:54321" → "192.168.1.1"
//   - "[2001:db8::1]:8080" → "2001:db8::1"
func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig lists the proxies whose forwarding headers are believed.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr falls inside an allowed range.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies converts IPs and CIDRs into prefixes. A bare IP
// becomes a /32 or /128.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid IP or CIDR %q in RATELIMIT_TRUSTED_PROXIES", entry)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LoadTrustedProxyConfig reads RATELIMIT_TRUST_PROXY and
// RATELIMIT_TRUSTED_PROXIES. Enabling trust without a valid proxy list is
// an error, so a misconfiguration stops startup instead of trusting nobody
// silently.
func LoadTrustedProxyConfig() (*TrustedProxyConfig, error) {
	cfg := &TrustedProxyConfig{
		Enabled: config.GetEnvBool("RATELIMIT_TRUST_PROXY", false),
	}
	if !cfg.Enabled {
		return cfg, nil
	}

	prefixes, err := ParseTrustedProxies(config.GetEnvStringList("RATELIMIT_TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, err
	}
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("RATELIMIT_TRUST_PROXY is enabled but RATELIMIT_TRUSTED_PROXIES is empty")
	}
	cfg.AllowedCIDRs = prefixes
	return cfg, nil
}

// TrustedProxyExtractor reads X-Forwarded-For, then X-Real-IP, but only
// when the peer is a trusted proxy. Headers from anyone else are ignored.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor creates an extractor for cfg.
func NewTrustedProxyExtractor(cfg TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: cfg}
}

// NewIPExtractor returns a TrustedProxyExtractor when cfg enables proxy
// trust and a RemoteAddrExtractor otherwise.
func NewIPExtractor(cfg *TrustedProxyConfig) IPExtractor {
	if cfg == nil || !cfg.Enabled {
		return &RemoteAddrExtractor{}
	}
	return NewTrustedProxyExtractor(*cfg)
}

// ExtractIP returns the forwarded client address for trusted peers and the
// peer address otherwise.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	xff := r.Header.Get("X-Forwarded-For")
	xri := r.Header.Get("X-Real-IP")

	if !e.config.IsTrusted(r.RemoteAddr) {
		if xff != "" || xri != "" {
			// なりすましの可能性があるので記録だけしてヘッダーは使わない
			slog.Warn("untrusted peer sent forwarding headers",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff),
				slog.String("x_real_ip", xri))
		}
		return extractIPFromAddr(r.RemoteAddr)
	}

	if ip := parseFirstIP(xff); ip != "" {
		return ip, nil
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
		return addr.Unmap().String(), nil
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr accepts "host:port" or a bare IP.
func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = strings.Trim(addr, "[]")
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return ip.Unmap().String(), nil
}

// parseFirstIP returns the left-most entry of an X-Forwarded-For list,
// or "" when that entry is not an IP.
func parseFirstIP(s string) string {
	first, _, _ := strings.Cut(s, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}
