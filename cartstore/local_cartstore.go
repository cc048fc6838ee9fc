package cartstore

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LocalCartStore keeps values in process memory. Nothing survives a restart.
type LocalCartStore struct {
	mu    sync.RWMutex
	items map[string]string

	log logrus.FieldLogger
}

// NewLocalCartStore constructor
func NewLocalCartStore(log logrus.FieldLogger) *LocalCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalCartStore{
		items: make(map[string]string),
		log:   log.WithField("component", "LocalCartStore"),
	}
}

// Initialize does nothing in this implementation.
func (l *LocalCartStore) Initialize(ctx context.Context) error {
	l.log.Info("LocalCartStore initialized")
	return nil
}

// GetItem returns the value stored under key.
func (l *LocalCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	l.log.WithField("key", key).Debug("GetItem called")
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.items[key]
	return v, ok, nil
}

// SetItem overwrites the value stored under key.
func (l *LocalCartStore) SetItem(ctx context.Context, key, value string) error {
	l.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("SetItem called")
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[key] = value
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (l *LocalCartStore) RemoveItem(ctx context.Context, key string) error {
	l.log.WithField("key", key).Debug("RemoveItem called")
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.items, key)
	return nil
}

// Ping is a health check that always returns true.
func (l *LocalCartStore) Ping(ctx context.Context) bool {
	return true
}

func (l *LocalCartStore) Close() error {
	return nil
}
