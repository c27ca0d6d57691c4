// Package craft reads blog and guide documents from the Craft Docs API.
package craft

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"realty_site/internal/adapters/vendorhttp"
	"realty_site/internal/domain"
)

const service = "craft"

type Client struct {
	base  string
	token string
	http  *retryablehttp.Client
}

func New(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  vendorhttp.NewClient(10*time.Second, 2),
	}
}

type rawDoc struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

type rawBlock struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Markdown  string `json:"markdown"`
	TextStyle string `json:"textStyle"`
	ListStyle string `json:"listStyle"`
	Style     struct {
		TextStyle string `json:"textStyle"`
		ListStyle string `json:"listStyle"`
	} `json:"style"`
	TaskInfo struct {
		State string `json:"state"`
	} `json:"taskInfo"`
	Language  string     `json:"language"`
	RawCode   string     `json:"rawCode"`
	URL       string     `json:"url"`
	AltText   string     `json:"altText"`
	Title     string     `json:"title"`
	Blocks    []rawBlock `json:"blocks"`
	Subblocks []rawBlock `json:"subblocks"`
}

func (c *Client) headers() (map[string]string, error) {
	if c.token == "" {
		return nil, fmt.Errorf("craft: set CRAFT_TOKEN: %w", domain.ErrMisconfigured)
	}
	return map[string]string{"Authorization": "Bearer " + c.token}, nil
}

func (c *Client) ListDocuments(ctx context.Context, folderID string) ([]domain.ContentDoc, error) {
	h, err := c.headers()
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []rawDoc `json:"items"`
	}
	err = vendorhttp.Do(ctx, c.http, vendorhttp.Request{
		Service:  service,
		Endpoint: "documents",
		Method:   http.MethodGet,
		URL:      c.base + "/documents?folderId=" + url.QueryEscape(folderID),
		Headers:  h,
	}, &out)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.ContentDoc, 0, len(out.Items))
	for _, d := range out.Items {
		if d.ID == "" {
			continue
		}
		updated := d.LastModifiedAt
		if updated.IsZero() {
			updated = d.CreatedAt
		}
		docs = append(docs, domain.ContentDoc{ID: d.ID, Title: strings.TrimSpace(d.Title), CreatedAt: d.CreatedAt, UpdatedAt: updated})
	}
	return docs, nil
}

// GetBlocks returns the top-level blocks of a document. The root page block is unwrapped.
func (c *Client) GetBlocks(ctx context.Context, documentID string) ([]domain.Block, error) {
	h, err := c.headers()
	if err != nil {
		return nil, err
	}
	var root rawBlock
	err = vendorhttp.Do(ctx, c.http, vendorhttp.Request{
		Service:  service,
		Endpoint: "blocks",
		Method:   http.MethodGet,
		URL:      c.base + "/blocks?id=" + url.QueryEscape(documentID),
		Headers:  h,
	}, &root)
	if err != nil {
		return nil, err
	}
	if root.Type == "page" || root.Type == "document" {
		return toBlocks(children(root)), nil
	}
	return toBlocks([]rawBlock{root}), nil
}

func children(b rawBlock) []rawBlock {
	if len(b.Blocks) > 0 {
		return b.Blocks
	}
	return b.Subblocks
}

func toBlocks(in []rawBlock) []domain.Block {
	out := make([]domain.Block, 0, len(in))
	for _, r := range in {
		b := domain.Block{
			ID:        r.ID,
			Type:      r.Type,
			Content:   firstNonEmpty(r.Markdown, r.Content, r.RawCode, r.Title),
			TextStyle: firstNonEmpty(r.TextStyle, r.Style.TextStyle),
			ListStyle: firstNonEmpty(r.ListStyle, r.Style.ListStyle),
			Checked:   r.TaskInfo.State == "done",
			Language:  r.Language,
			URL:       r.URL,
			AltText:   r.AltText,
		}
		if kids := children(r); len(kids) > 0 {
			b.Blocks = toBlocks(kids)
		}
		out = append(out, b)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
