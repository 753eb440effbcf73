package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders is the header priority used by GetIP.
var DefaultHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

var (
	defaultResolver = NewResolver(DefaultHeaders...)
	remoteResolver  = NewResolver()
)

// Resolver extracts the client IP from a fixed, ordered list of proxy headers
// and falls back to RemoteAddr. Only list headers that your edge proxy
// overwrites; anything else is client controlled.
type Resolver struct {
	headers []string
}

// NewResolver creates a Resolver that trusts the given headers in order.
// With no headers only RemoteAddr is used.
func NewResolver(headers ...string) *Resolver {
	hs := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			hs = append(hs, http.CanonicalHeaderKey(h))
		}
	}
	return &Resolver{headers: hs}
}

// IP returns the normalized client IP, or an empty string when none of the
// sources holds a valid address.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		// Forwarding chains are comma separated; the first valid entry is the client.
		for candidate := range strings.SplitSeq(v, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// GetIP returns the client's IP address using DefaultHeaders.
func GetIP(r *http.Request) string {
	return defaultResolver.IP(r)
}

// RemoteIP returns the normalized IP of r.RemoteAddr, ignoring every header.
func RemoteIP(r *http.Request) string {
	return remoteResolver.IP(r)
}

// parseIP validates and normalizes an IP address string.
// Returns empty string if the IP is invalid.
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	return ip.String()
}
