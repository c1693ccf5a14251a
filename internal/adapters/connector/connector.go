// Package connector fetches raw source payloads over http(s), sftp or the
// local filesystem.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

// Fetcher reads the whole payload of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) ([]byte, error)
}

// Router dispatches to a transport by endpoint scheme.
type Router struct {
	client     *http.Client
	timeout    time.Duration
	maxBody    int64
	knownHosts string
	logger     logger.Logger
}

// New builds a Router.
func New(opts ...Option) *Router {
	r := &Router{timeout: defaultTimeout, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("connector")
	}
	return r
}

// Fetch implements Fetcher. Every failure is a *ConnectivityError.
func (r *Router) Fetch(ctx context.Context, src config.Source) ([]byte, error) {
	u, err := url.Parse(src.Endpoint)
	if err != nil {
		return nil, r.fail(src, "invalid", fmt.Errorf("parse endpoint: %w", err))
	}

	start := time.Now()
	var body []byte
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		body, err = r.fetchHTTP(ctx, u, src)
	case "sftp":
		body, err = r.fetchSFTP(ctx, u, src)
	case "", "file":
		body, err = r.fetchFile(u, src.Endpoint)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupported, u.Scheme)
	}
	if err != nil {
		return nil, r.fail(src, u.Scheme, err)
	}

	metrics.RecordPayloadSize(src.Name, len(body))
	r.logger.Debug(ctx, "source fetched",
		logger.String("source_name", src.Name),
		logger.String("endpoint", u.Redacted()),
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)),
	)
	return body, nil
}

func (r *Router) fail(src config.Source, scheme string, err error) error {
	if scheme == "" {
		scheme = "file"
	}
	metrics.RecordConnectorError(strings.ToLower(scheme))
	ce := &ConnectivityError{Source: src.Name, Endpoint: redact(src.Endpoint), Err: err}
	var se *statusError
	if errors.As(err, &se) {
		ce.Status = se.code
	}
	return ce
}

func (r *Router) fetchFile(u *url.URL, endpoint string) ([]byte, error) {
	path := endpoint
	if u.Scheme != "" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.readAll(f)
}

func (r *Router) readAll(rd io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(rd, r.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > r.maxBody {
		return nil, ErrTooLarge
	}
	return b, nil
}

func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}
