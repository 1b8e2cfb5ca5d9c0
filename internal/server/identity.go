package server

import "net/http"

// clientIDHeader is the header clients may set to identify themselves
// across requests, letting per-user state (rate limiting, LatestOnly,
// suggestion cache) track them consistently regardless of network path.
const clientIDHeader = "X-Client-Id"

// resolveIdentity returns the user identity for a request: the
// X-Client-Id header if set, else the remote peer address, else "anon".
func resolveIdentity(r *http.Request) string {
	if id := r.Header.Get(clientIDHeader); id != "" {
		return id
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "anon"
}
