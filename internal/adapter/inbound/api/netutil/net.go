// Package netutil provides network helpers for the API layer.
package netutil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address. X-Forwarded-For (first valid entry)
// wins over X-Real-IP, which wins over RemoteAddr with its port stripped.
func ClientIP(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(candidate); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.Trim(r.RemoteAddr, "[]")
}
