package cart

import (
	"context"
	"sync"
)

// Memory keeps carts in process memory.
type Memory struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{carts: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, cartID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.carts[cartID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), raw...), nil
}

func (m *Memory) Write(_ context.Context, cartID string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cartID] = append([]byte(nil), raw...)
	return nil
}
