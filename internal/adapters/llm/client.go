// Package llm calls an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"realty_site/internal/adapters/vendorhttp"
	"realty_site/internal/domain"
)

const service = "llm"

type Client struct {
	base      string
	key       string
	model     string
	maxTokens int
	http      *retryablehttp.Client
}

func New(base, key, model string, maxTokens int) *Client {
	return &Client{
		base:      strings.TrimRight(base, "/"),
		key:       key,
		model:     model,
		maxTokens: maxTokens,
		http:      vendorhttp.NewClient(30*time.Second, 1),
	}
}

type completionRequest struct {
	Model     string               `json:"model"`
	Messages  []domain.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if c.key == "" {
		return "", fmt.Errorf("llm: set CHAT_API_KEY: %w", domain.ErrMisconfigured)
	}
	var out completionResponse
	err := vendorhttp.Do(ctx, c.http, vendorhttp.Request{
		Service:  service,
		Endpoint: "chat/completions",
		Method:   http.MethodPost,
		URL:      c.base + "/chat/completions",
		Headers:  map[string]string{"Authorization": "Bearer " + c.key},
		Body:     completionRequest{Model: c.model, Messages: messages, MaxTokens: c.maxTokens},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
