package cartstore

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultKey is the namespaced key the cart snapshot is stored under.
const DefaultKey = "@Gomarketplace:product"

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("cartstore: unknown storage backend")

// IStorage is the key-value persistence layer the cart snapshot is written to.
type IStorage interface {
	Initialize(ctx context.Context) error

	// GetItem returns the stored value and whether the key was present.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error

	Ping(ctx context.Context) bool
	Close() error
}
