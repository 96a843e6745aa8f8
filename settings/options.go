package settings

import (
	"context"
	"sync"
)

// OptionStore is a key-value options backend. The engine's configuration
// (rule list, excluded categories) is a handful of JSON documents under
// well-known keys, so the persistence surface stays this narrow.
type OptionStore interface {
	// Get reads an option. The second return is false when the key is
	// absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes an option, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error
}

// InMemoryOptions implements OptionStore using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryOptions struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// NewInMemoryOptions creates an empty in-memory option store.
func NewInMemoryOptions() *InMemoryOptions {
	return &InMemoryOptions{values: make(map[string][]byte)}
}

// Get reads an option.
func (o *InMemoryOptions) Get(ctx context.Context, key string) ([]byte, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v, ok := o.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set writes an option.
func (o *InMemoryOptions) Set(ctx context.Context, key string, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.values[key] = append([]byte(nil), value...)
	return nil
}
