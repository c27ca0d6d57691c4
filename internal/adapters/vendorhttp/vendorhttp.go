// Package vendorhttp holds the JSON-over-HTTP plumbing shared by the vendor clients.
package vendorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"realty_site/internal/adapters/observability"
	"realty_site/internal/domain"
)

// NewClient returns a retrying HTTP client for transient network and 5xx failures.
// 429 is left to the caller so rate limits flow through the app-level Retrier.
func NewClient(timeout time.Duration, retries int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return rc
}

// Request describes one JSON call.
type Request struct {
	Service  string
	Endpoint string // metrics label
	Method   string
	URL      string
	Headers  map[string]string
	Body     any
}

// Do sends r and decodes a 2xx JSON answer into out (which may be nil).
// Non-2xx answers become *domain.VendorError carrying the vendor's message.
func Do(ctx context.Context, hc *retryablehttp.Client, r Request, out any) error {
	var payload io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.Method, r.URL, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "realty-site/1.0")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		observability.ObserveExternal(r.Service, r.Endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w", r.Service, r.Endpoint, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(r.Service, r.Endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.VendorError{Service: r.Service, Status: resp.StatusCode, Message: errorMessage(b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", r.Service, r.Endpoint, err)
	}
	return nil
}

// errorMessage pulls a human message out of the common vendor error shapes.
func errorMessage(b []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		switch e := body.Error.(type) {
		case string:
			return e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				return m
			}
		}
	}
	return strings.TrimSpace(string(b))
}
