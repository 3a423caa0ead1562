package mocks

import (
	"context"
	"sync"

	"github.com/eidoslabs/eidos/retrieval"
)

// MockRetriever is a scripted retrieval.Retriever.
type MockRetriever struct {
	mu sync.Mutex

	passages []retrieval.Passage
	err      error

	queries []string
}

// NewMockRetriever creates a retriever returning no passages.
func NewMockRetriever() *MockRetriever {
	return &MockRetriever{}
}

// WithPassages sets the passages every query returns.
func (m *MockRetriever) WithPassages(passages ...retrieval.Passage) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = passages
	return m
}

// WithDocuments sets passages from plain contents.
func (m *MockRetriever) WithDocuments(contents ...string) *MockRetriever {
	passages := make([]retrieval.Passage, len(contents))
	for i, c := range contents {
		passages[i] = retrieval.Passage{ID: c, Content: c}
	}
	return m.WithPassages(passages...)
}

// WithError makes every query fail.
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Retrieve implements retrieval.Retriever.
func (m *MockRetriever) Retrieve(ctx context.Context, query string) ([]retrieval.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return append([]retrieval.Passage{}, m.passages...), nil
}

// Queries returns the recorded queries.
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.queries...)
}

// CallCount returns how many times Retrieve was invoked.
func (m *MockRetriever) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}
