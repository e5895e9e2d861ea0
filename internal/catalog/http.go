package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leapstack-labs/datarade/pkg/core"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 5.0
	defaultTimeout   = 30 * time.Second
	userAgent        = "datarade"
)

// httpClient is a rate-limited client for hosted catalog backends.
// It never retries; callers that need resilience wrap the store.
type httpClient struct {
	hc       *http.Client
	limiter  *rate.Limiter
	location string
	auth     func(*http.Request)
	logger   *slog.Logger
}

func newHTTPClient(src Source, location string, auth func(*http.Request)) *httpClient {
	hc := src.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	limit := src.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	logger := src.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &httpClient{
		hc:       hc,
		limiter:  rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		location: location,
		auth:     auth,
		logger:   logger,
	}
}

// do sends one request and returns the body of a successful response.
// key names the artifact in a NotFoundError.
func (c *httpClient) do(ctx context.Context, method, url, key string, body io.Reader, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &core.TransportError{Op: method, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &core.TransportError{Op: method, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.auth != nil {
		c.auth(req)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &core.TransportError{Op: method, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("catalog request",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransportError{Op: method, URL: url, Err: err}
	}
	if err := c.checkStatus(method, url, key, resp.StatusCode); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *httpClient) checkStatus(method, url, key string, status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &core.AuthenticationError{Location: c.location, Status: status}
	case status == http.StatusNonAuthoritativeInfo:
		// Azure DevOps answers 203 with a sign-in page for bad credentials
		return &core.AuthenticationError{Location: c.location, Status: status}
	case status == http.StatusNotFound:
		return &core.NotFoundError{Kind: "artifact", Key: key}
	case status >= 200 && status < 300:
		return nil
	default:
		return &core.TransportError{Op: method, URL: url, Err: fmt.Errorf("unexpected status %d", status)}
	}
}
