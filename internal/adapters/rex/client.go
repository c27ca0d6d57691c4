// Package rex talks to the Rex Software CRM API.
package rex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"realty_site/internal/adapters/observability"
	"realty_site/internal/domain"
)

const service = "rex"

type Options struct {
	Base string
	// Token is a static bearer credential. When empty, Email/Password/AccountID
	// are exchanged for a session token on first use.
	Token     string
	Email     string
	Password  string
	AccountID string
	RPS       int
	Timeout   time.Duration
}

type Client struct {
	base   string
	hc     *http.Client
	rl     *rate.Limiter
	static string
	opts   Options

	mu      sync.Mutex
	session string
}

func New(o Options) *Client {
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(o.Base, "/"),
		hc:     &http.Client{Timeout: o.Timeout},
		rl:     rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		static: o.Token,
		opts:   o,
	}
}

// DefaultExtraFields are the field groups requested when reading a full listing.
var DefaultExtraFields = []string{"images", "documents", "agents", "advert_internet", "property"}

// ---- Public API ----

func (c *Client) SearchListings(ctx context.Context, offset, limit int) (domain.ListingSearchResult, error) {
	body := map[string]any{
		"criteria": []any{},
		"offset":   offset,
		"limit":    limit,
		"order_by": map[string]string{"system_ctime": "desc"},
		"extra_options": map[string]any{
			"extra_fields": []string{"images", "agents"},
		},
	}
	var res struct {
		Rows  []map[string]any `json:"rows"`
		Total json.Number      `json:"total"`
	}
	if err := c.call(ctx, "published-listings/search", body, &res); err != nil {
		return domain.ListingSearchResult{}, err
	}
	total, err := res.Total.Int64()
	if err != nil {
		total = int64(len(res.Rows))
	}
	return domain.ListingSearchResult{Rows: res.Rows, Total: int(total)}, nil
}

func (c *Client) ReadListing(ctx context.Context, id string, extraFields []string) (map[string]any, error) {
	if len(extraFields) == 0 {
		extraFields = DefaultExtraFields
	}
	body := map[string]any{
		"id":            id,
		"extra_options": map[string]any{"extra_fields": extraFields},
	}
	var out map[string]any
	if err := c.call(ctx, "published-listings/read", body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("rex: listing %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

// ---- Internals ----

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) dynamic() bool { return c.static == "" }

// call POSTs body to {base}/{endpoint} and decodes the envelope result into out.
// A 401 with dynamic credentials triggers exactly one re-login and retry.
func (c *Client) call(ctx context.Context, endpoint string, body, out any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	err = c.post(ctx, endpoint, token, body, out)
	if errors.Is(err, domain.ErrUnauthorized) && c.dynamic() {
		log.Info().Str("endpoint", endpoint).Msg("rex session rejected, logging in again")
		c.resetSession(token)
		if token, err = c.bearer(ctx); err != nil {
			return err
		}
		return c.post(ctx, endpoint, token, body, out)
	}
	return err
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if !c.dynamic() {
		return c.static, nil
	}
	if c.opts.Email == "" || c.opts.Password == "" {
		return "", fmt.Errorf("rex: set REX_TOKEN or REX_EMAIL/REX_PASSWORD: %w", domain.ErrMisconfigured)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}
	tok, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.session = tok
	return tok, nil
}

func (c *Client) resetSession(stale string) {
	c.mu.Lock()
	if c.session == stale {
		c.session = ""
	}
	c.mu.Unlock()
}

func (c *Client) login(ctx context.Context) (string, error) {
	body := map[string]any{
		"email":    c.opts.Email,
		"password": c.opts.Password,
	}
	if c.opts.AccountID != "" {
		body["account_id"] = c.opts.AccountID
	}
	var tok string
	if err := c.post(ctx, "authentication/login", "", body, &tok); err != nil {
		return "", fmt.Errorf("rex login: %w", err)
	}
	if tok == "" {
		return "", &domain.VendorError{Service: service, Status: http.StatusUnauthorized, Message: "empty session token"}
	}
	return tok, nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, body, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "realty-site/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rex %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("rex %s: read body: %w", endpoint, err)
	}

	var env envelope
	decErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decErr == nil && env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		msg = clip(msg, 512)
		return &domain.VendorError{Service: service, Status: resp.StatusCode, Message: msg}
	}
	if decErr != nil {
		return fmt.Errorf("rex %s: decode: %w", endpoint, decErr)
	}
	if env.Error != nil {
		// Rex can report failures inside a 200 envelope.
		status := env.Error.Code
		if status == 0 {
			status = http.StatusBadGateway
		}
		return &domain.VendorError{Service: service, Status: status, Message: env.Error.Message}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Result))
	dec.UseNumber()
	return dec.Decode(out)
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
