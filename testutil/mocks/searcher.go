package mocks

import (
	"context"
	"sync"

	"github.com/eidoslabs/eidos/websearch"
)

// MockSearcher is a scripted websearch.Searcher. Results and failures
// can be keyed per query, with a shared default.
type MockSearcher struct {
	mu sync.Mutex

	results   map[string][]websearch.Result
	errors    map[string]error
	defaults  []websearch.Result
	globalErr error

	queries []string
}

// NewMockSearcher creates a searcher returning no results.
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{
		results: make(map[string][]websearch.Result),
		errors:  make(map[string]error),
	}
}

// WithResults sets the results for one query.
func (m *MockSearcher) WithResults(query string, results ...websearch.Result) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = results
	return m
}

// WithDefaultResults sets the results for queries without a scripted entry.
func (m *MockSearcher) WithDefaultResults(results ...websearch.Result) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = results
	return m
}

// WithQueryError makes one query fail.
func (m *MockSearcher) WithQueryError(query string, err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[query] = err
	return m
}

// WithError makes every query fail.
func (m *MockSearcher) WithError(err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalErr = err
	return m
}

// Search implements websearch.Searcher.
func (m *MockSearcher) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.globalErr != nil {
		return nil, m.globalErr
	}
	if err, ok := m.errors[query]; ok {
		return nil, err
	}
	if results, ok := m.results[query]; ok {
		return append([]websearch.Result{}, results...), nil
	}
	return append([]websearch.Result{}, m.defaults...), nil
}

// Queries returns the recorded queries.
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.queries...)
}
