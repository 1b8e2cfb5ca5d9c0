package upstream

import "net/http"

// isRetryableStatus reports whether an HTTP status from an upstream
// provider warrants a caller-side retry (rate limiting or a transient
// server failure).
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
