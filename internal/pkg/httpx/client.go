// Package httpx is a small JSON-over-HTTP client guarded by a circuit breaker.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const maxBody = 1 << 20

// StatusError is a response outside 2xx.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: %s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsStatus reports whether err carries a response with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsRejected reports whether the peer answered with a 4xx.
func IsRejected(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// IsOpen reports whether the call was refused by the breaker without reaching the peer.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type Options struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Header  http.Header

	// Breaker trips after this many consecutive failures; 0 means 5.
	MaxFailures uint32
	OpenTimeout time.Duration
}

type Client struct {
	base   string
	header http.Header
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	maxFailures := opts.MaxFailures
	st := gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		// a 4xx is the peer working as intended
		IsSuccessful: func(err error) bool {
			return err == nil || IsRejected(err) || errors.Is(err, context.Canceled)
		},
	}
	h := opts.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &Client{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		header: h,
		http:   &http.Client{Timeout: opts.Timeout},
		cb:     gobreaker.NewCircuitBreaker[[]byte](st),
	}
}

// State exposes the breaker state, mostly for health output and tests.
func (c *Client) State() string { return c.cb.State().String() }

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpx: encode request: %w", err)
		}
		payload = b
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, c.base+path, payload)
	})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpx: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
