package connector

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/okian/xsrledger/internal/config"
)

// Header names the transcript API expects.
const (
	HeaderSubscriptionKey = "Ocp-Apim-Subscription-Key"
	headerCacheControl    = "Cache-Control"
)

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// BuildURL appends the source parameters to the endpoint query.
func BuildURL(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Router) fetchHTTP(ctx context.Context, u *url.URL, src config.Source) ([]byte, error) {
	target, err := BuildURL(u.String(), src.Parameters)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerCacheControl, "no-cache")
	req.Header.Set("Accept-Encoding", "gzip, br")
	if src.Credential != "" {
		req.Header.Set(HeaderSubscriptionKey, src.Credential)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := decode(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return r.readAll(body)
}

// decode unwraps the response body per Content-Encoding.
func decode(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
