package engine

import (
	"context"
	"sync"
)

// MockOracle is a test Oracle returning a fixed label or error.
type MockOracle struct {
	Err     error
	Label   string
	Block   bool
	queries []Query
	mu      sync.Mutex
}

// Classify records q and returns the configured answer. When Block is set it
// waits for ctx to finish.
func (m *MockOracle) Classify(ctx context.Context, q Query) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.Label, m.Err
}

// Queries returns the recorded queries.
func (m *MockOracle) Queries() []Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Query(nil), m.queries...)
}
