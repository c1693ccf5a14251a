package connector

import (
	"net/http"
	"time"

	"github.com/okian/xsrledger/pkg/logger"
)

const (
	defaultTimeout = 60 * time.Second
	defaultMaxBody = 256 << 20
)

// Option configures a Router.
type Option func(*Router)

// WithHTTPClient replaces the client used for http and https endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Router) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout bounds a single fetch. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxBody caps the decoded payload size.
func WithMaxBody(n int64) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// WithKnownHosts verifies SFTP host keys against an OpenSSH known_hosts file.
func WithKnownHosts(path string) Option {
	return func(r *Router) {
		r.knownHosts = path
	}
}

// WithLogger sets the connector logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}
