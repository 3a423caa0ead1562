// Package mocks provides mock collaborators for tests.
package mocks

import (
	"context"
	"sync"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/types"
)

// MockProvider is a scripted llm.Provider. Replies are consumed in
// order; when the script runs out the fixed response is returned.
type MockProvider struct {
	mu sync.Mutex

	replies  []string
	response string
	err      error

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls     []*llm.ChatRequest
	callCount int
	failAt    int // 1-based call index that fails, 0 disables
}

// NewMockProvider creates a provider answering "Mock response".
func NewMockProvider() *MockProvider {
	return &MockProvider{response: "Mock response"}
}

// WithResponse sets the fixed fallback response.
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithReplies queues scripted replies consumed one per call.
func (m *MockProvider) WithReplies(replies ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAt makes the n-th call (1-based) fail.
func (m *MockProvider) WithFailAt(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n
	return m
}

// WithCompletionFunc overrides the completion behaviour entirely.
func (m *MockProvider) WithCompletionFunc(f func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = f
	return m
}

// Completion implements llm.Provider.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.callCount++
	m.calls = append(m.calls, req)
	count := m.callCount
	f := m.completionFunc
	err := m.err
	failAt := m.failAt
	content := m.response
	if len(m.replies) > 0 {
		content = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if f != nil {
		return f(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if failAt > 0 && count == failAt {
		return nil, types.NewError(types.ErrUpstreamError, "injected failure").WithRetryable(true)
	}
	return &llm.ChatResponse{
		Model: req.Model,
		Choices: []llm.ChatChoice{
			{Index: 0, FinishReason: "stop", Message: llm.NewAssistantMessage(content)},
		},
		Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// Calls returns the recorded requests.
func (m *MockProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest{}, m.calls...)
}

// CallCount returns how many times Completion was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the most recent request, nil when none happened.
func (m *MockProvider) LastCall() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
