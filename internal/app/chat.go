package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

var ErrEmptyReply = errors.New("chat: empty reply")

type ChatOptions struct {
	SystemPrompt string
	MaxHistory   int
}

func ChatOptionsFrom(cfg shared.Config) ChatOptions {
	return ChatOptions{SystemPrompt: cfg.ChatSystemPrompt, MaxHistory: cfg.ChatMaxHistory}
}

type ChatService struct {
	llm   domain.ChatCompleter
	retry *shared.Retrier
	opts  ChatOptions
}

func NewChatService(c domain.ChatCompleter, r *shared.Retrier, o ChatOptions) *ChatService {
	return &ChatService{llm: c, retry: r, opts: o}
}

// Reply answers the last user message given the conversation so far.
func (s *ChatService) Reply(ctx context.Context, history []domain.ChatMessage) (string, error) {
	msgs := make([]domain.ChatMessage, 0, len(history)+1)
	for i, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			return "", fmt.Errorf("message %d: role %q: %w", i, m.Role, domain.ErrInvalidInput)
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		msgs = append(msgs, domain.ChatMessage{Role: role, Content: text})
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("messages: %w", domain.ErrInvalidInput)
	}
	if n := s.opts.MaxHistory; n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	if p := strings.TrimSpace(s.opts.SystemPrompt); p != "" {
		msgs = append([]domain.ChatMessage{{Role: "system", Content: p}}, msgs...)
	}

	reply, err := shared.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, msgs)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
