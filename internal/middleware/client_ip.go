package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the address used to partition rate limits. Behind a proxy,
// chi's RealIP middleware must run first; otherwise the TCP peer is used.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
