package repository

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrKeyNotFound = errors.New("storage key not found")
)

// Storage is a small durable key/value store holding per-session client state
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type namespacedStorage struct {
	inner  Storage
	prefix string
}

// Namespace scopes every key of s under prefix
func Namespace(s Storage, prefix string) Storage {
	return &namespacedStorage{inner: s, prefix: prefix}
}

func (n *namespacedStorage) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespacedStorage) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespacedStorage) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = n.prefix + key
	}
	return n.inner.Delete(ctx, scoped...)
}

type memoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates a process-local Storage
func NewMemoryStorage() Storage {
	return &memoryStorage{values: make(map[string]string)}
}

func (m *memoryStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *memoryStorage) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}
