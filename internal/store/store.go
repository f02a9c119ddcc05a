// Package store loads and saves named JSON values through a key/value
// backend, falling back to a default when a value is missing or unreadable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"taskflow/internal/repo"
)

// Names of the persisted values.
const (
	KeyTasks       = "tasks"
	KeyCurrentUser = "currentUser"
)

type KV interface {
	GetValue(ctx context.Context, name string) ([]byte, error)
	PutValue(ctx context.Context, name string, value []byte) error
}

// Load reads name and decodes it into a T. Missing, unreadable or
// undecodable values yield def; the failure is logged, never returned.
func Load[T any](ctx context.Context, kv KV, name string, def T, logger *log.Logger) T {
	if logger == nil {
		logger = log.Default()
	}
	raw, err := kv.GetValue(ctx, name)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Printf("store: read %s: %v; using default", name, err)
		}
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Printf("store: decode %s: %v; using default", name, err)
		return def
	}
	return v
}

// Save rewrites the full value under name.
func Save[T any](ctx context.Context, kv KV, name string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := kv.PutValue(ctx, name, raw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// MemoryKV is an in-process KV, used by tests and dry runs.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
	// FailWrites makes PutValue return an error.
	FailWrites bool
}

func (m *MemoryKV) GetValue(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) PutValue(_ context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("memory kv: writes disabled")
	}
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[name] = append([]byte(nil), value...)
	return nil
}
