package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from the request.
// Uses r.RemoteAddr only (no proxy headers).
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// ForwardedClientIP prefers the first X-Forwarded-For hop, for deployments behind a
// reverse proxy that sets it. Falls back to RealClientIP.
func ForwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return RealClientIP(r)
}

// Resolver picks ForwardedClientIP when trustProxy is set.
func Resolver(trustProxy bool) func(*http.Request) string {
	if trustProxy {
		return ForwardedClientIP
	}
	return RealClientIP
}
