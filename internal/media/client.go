package media

import (
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	maxRedirects = 5
	userAgent    = "Quillbase-Media/1.0"
)

var errTooManyRedirects = errors.New("too many redirects")

// NewHTTPClient creates a client for fetching remote media. timeout bounds
// the whole request, body included; zero means no overall limit, which
// downloads rely on. Every redirect target is checked with guard.
func NewHTTPClient(timeout time.Duration, guard func(string) error) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			if guard != nil {
				return guard(req.URL.String())
			}
			return nil
		},
	}
}
