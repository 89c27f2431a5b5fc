package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

// DefaultTimeout bounds each outbound request.
const DefaultTimeout = 10 * time.Second

// NewInMemoryCachingHTTPClient creates an HTTP client that honours Cache-Control on responses,
// keeping entries in memory. Identity provider key sets are fetched through it, so a request sent
// with Cache-Control: no-cache always reaches the origin.
func NewInMemoryCachingHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
	}
}
