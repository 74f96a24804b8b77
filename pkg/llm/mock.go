package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider is a testing implementation of Provider.
// Without a Response it echoes the system prompt and the last user message.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// LastRequest holds the most recent request received.
	LastRequest *ChatRequest
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.LastRequest = &req
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Response
	if content == "" {
		content = echo(req.Messages)
	}
	return &ChatResponse{
		Content: content,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

func echo(messages []Message) string {
	var system, user string
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleUser:
			user = msg.Content
		}
	}
	if system == "" {
		return fmt.Sprintf("[mock] %s", user)
	}
	return fmt.Sprintf("[mock as %q] %s", strings.TrimSpace(system), user)
}
