package upstream

import (
	"net/http"
	"time"
)

// newPooledHTTPClient returns an *http.Client tuned for many short-lived
// requests to a single upstream host: keep-alives on, modest idle pool,
// no overall timeout (callers drive cancellation via context, since
// streaming responses can legitimately run long).
func newPooledHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
