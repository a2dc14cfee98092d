package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "spotprice-go"
	maxBodyBytes = 10 << 20
	maxErrorBody = 512
)

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is a rate limited HTTP client for one provider API. Responses with a
// non-2xx status are turned into a *StatusError, nothing is retried.
type Client struct {
	provider string
	http     *http.Client
	limiter  *rate.Limiter
}

func New(provider string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst < 1 {
		opts.Burst = 2
	}
	return &Client{
		provider: provider,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.do(req)
}

func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, header http.Header) ([]byte, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%s: waiting for rate limiter: %w", c.provider, c.wrapTransportErr(err))
	}

	req.Header.Set("User-Agent", userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %s: %w", c.provider, req.Method, redact(req.URL), c.wrapTransportErr(err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", c.provider, c.wrapTransportErr(err))
	}

	if kind := Classify(res.StatusCode); kind != nil {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return body, &StatusError{
			Provider:   c.provider,
			URL:        redact(req.URL),
			StatusCode: res.StatusCode,
			Body:       string(body),
			kind:       kind,
		}
	}

	return body, nil
}

func (c *Client) wrapTransportErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err // the url may carry a security token
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// redact drops the query string, it may carry a security token.
func redact(u *url.URL) string {
	r := *u
	r.RawQuery = ""
	return r.String()
}
