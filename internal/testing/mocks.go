package testing

import (
	"context"
	"sync"

	"github.com/aristath/prisk/internal/domain"
)

// MockSource is a payload source returning a configurable payload or error.
type MockSource struct {
	mu      sync.Mutex
	payload *domain.Payload
	err     error
	calls   int
	name    string
}

// NewMockSource creates a mock source named "mock"
func NewMockSource(p *domain.Payload) *MockSource {
	return &MockSource{payload: p, name: "mock"}
}

// SetPayload sets the payload returned by Fetch
func (m *MockSource) SetPayload(p *domain.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = p
	m.err = nil
}

// SetError makes Fetch fail with err
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Fetch was called
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name implements payload.Source
func (m *MockSource) Name() string { return m.name }

// Fetch implements payload.Source
func (m *MockSource) Fetch(ctx context.Context) (*domain.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}
