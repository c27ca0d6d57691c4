// Package mailer sends transactional email and manages the newsletter audience
// through a Resend-compatible HTTP API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"realty_site/internal/adapters/vendorhttp"
	"realty_site/internal/domain"
)

const service = "mailer"

type Client struct {
	base string
	key  string
	http *retryablehttp.Client
}

func New(base, key string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  key,
		http: vendorhttp.NewClient(10*time.Second, 2),
	}
}

func (c *Client) headers() (map[string]string, error) {
	if c.key == "" {
		return nil, fmt.Errorf("mailer: set MAIL_API_KEY: %w", domain.ErrMisconfigured)
	}
	return map[string]string{"Authorization": "Bearer " + c.key}, nil
}

// Send delivers one email and returns the vendor message id. Transport retries of the
// same call share one idempotency key so the vendor delivers at most once.
func (c *Client) Send(ctx context.Context, e domain.Email) (string, error) {
	h, err := c.headers()
	if err != nil {
		return "", err
	}
	h["Idempotency-Key"] = uuid.NewString()
	var out struct {
		ID string `json:"id"`
	}
	err = vendorhttp.Do(ctx, c.http, vendorhttp.Request{
		Service: service, Endpoint: "emails", Method: http.MethodPost,
		URL: c.base + "/emails", Headers: h, Body: e,
	}, &out)
	if err != nil {
		return "", classify(err)
	}
	return out.ID, nil
}

// UpsertContact adds c to the audience. An existing contact counts as success.
func (c *Client) UpsertContact(ctx context.Context, audienceID string, ct domain.Contact) error {
	h, err := c.headers()
	if err != nil {
		return err
	}
	if audienceID == "" {
		return fmt.Errorf("mailer: set MAIL_AUDIENCE_ID: %w", domain.ErrMisconfigured)
	}
	body := map[string]any{
		"email":        strings.ToLower(strings.TrimSpace(ct.Email)),
		"first_name":   ct.FirstName,
		"last_name":    ct.LastName,
		"unsubscribed": false,
	}
	err = vendorhttp.Do(ctx, c.http, vendorhttp.Request{
		Service: service, Endpoint: "contacts", Method: http.MethodPost,
		URL: c.base + "/audiences/" + url.PathEscape(audienceID) + "/contacts", Headers: h, Body: body,
	}, nil)
	if err == nil || alreadyExists(err) {
		return nil
	}
	return classify(err)
}

func alreadyExists(err error) bool {
	var ve *domain.VendorError
	if !errors.As(err, &ve) {
		return false
	}
	return ve.Status == http.StatusConflict || strings.Contains(strings.ToLower(ve.Message), "already exists")
}

// classify tags sender-domain configuration failures so callers can tell them apart.
func classify(err error) error {
	var ve *domain.VendorError
	if errors.As(err, &ve) {
		low := strings.ToLower(ve.Message)
		if strings.Contains(low, "not verified") || strings.Contains(low, "verify a domain") {
			return fmt.Errorf("%w: %w", domain.ErrDomainNotVerified, err)
		}
	}
	return err
}
