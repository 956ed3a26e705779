package openei

import (
	"crypto/tls"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single OpenEI request when no client is supplied.
const DefaultTimeout = 30 * time.Second

// NewHTTPClient creates an HTTP client with optional TLS verification
// skipping, for endpoints with broken certificate chains.
func NewHTTPClient(timeout time.Duration, skipTLSVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DefaultHTTPClient returns a client with DefaultTimeout and normal TLS.
func DefaultHTTPClient() *http.Client {
	return NewHTTPClient(DefaultTimeout, false)
}
