package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// MaxUserAgentLength bounds the user agent recorded for a request
const MaxUserAgentLength = 512

// IPConfig lists the proxies whose forwarding headers are honored.
// A nil *IPConfig trusts nobody.
type IPConfig struct {
	proxies []*net.IPNet
}

// NewIPConfig parses trusted proxy ranges. A bare address is taken as a
// single-host range.
func NewIPConfig(trustedProxies []string) (*IPConfig, error) {
	cfg := &IPConfig{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			cfg.proxies = append(cfg.proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		cfg.proxies = append(cfg.proxies, ipNet)
	}
	return cfg, nil
}

func (c *IPConfig) trusts(ip net.IP) bool {
	if c == nil || ip == nil {
		return false
	}
	for _, n := range c.proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Client is who sent a request, as the login audit trail records it
type Client struct {
	IP        string
	UserAgent string
}

// ClientInfo identifies the caller of r.
//
// Forwarding headers are read only when the connecting peer is a trusted
// proxy. X-Forwarded-For is then walked from the right, skipping trusted hops,
// so entries a client prepends itself are never reached. X-Real-IP is the
// fallback, then the peer address.
func ClientInfo(r *http.Request, cfg *IPConfig) Client {
	return Client{
		IP:        clientIP(r, cfg),
		UserAgent: truncateUserAgent(r.UserAgent()),
	}
}

func clientIP(r *http.Request, cfg *IPConfig) string {
	peer := peerAddr(r)
	if !cfg.trusts(net.ParseIP(peer)) {
		return peer
	}

	if values := r.Header.Values("X-Forwarded-For"); len(values) > 0 {
		hops := strings.Split(strings.Join(values, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !cfg.trusts(ip) {
				return ip.String()
			}
		}
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	return peer
}

// peerAddr is the address of the connection, without its port
func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

func truncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLength {
		return ua
	}
	// drop a rune split by the cut
	return strings.ToValidUTF8(ua[:MaxUserAgentLength], "")
}
