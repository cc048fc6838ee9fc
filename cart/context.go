package cart

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoProvider is the panic value of Use outside a provider scope.
var ErrNoProvider = errors.New("cart: Use must be called within a provider scope")

// Cart is what consumers see of a Store.
type Cart interface {
	Products() []Product
	AddToCart(ctx context.Context, in ProductInput) error
	Increment(ctx context.Context, id string) error
	Decrement(ctx context.Context, id string) error
}

type ctxKey struct{}

// NewContext returns a copy of ctx that provides c to Use and FromContext.
func NewContext(ctx context.Context, c Cart) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the cart provided to ctx, if any.
func FromContext(ctx context.Context) (Cart, bool) {
	c, ok := ctx.Value(ctxKey{}).(Cart)
	return c, ok && c != nil
}

// Use returns the cart provided to ctx and panics with ErrNoProvider when
// there is none. A missing provider is a wiring bug, not a runtime condition.
func Use(ctx context.Context) Cart {
	c, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoProvider)
	}
	return c
}

// Provide makes s the cart for everything running under the returned context.
func (s *Store) Provide(ctx context.Context) context.Context {
	return NewContext(ctx, s)
}

var _ Cart = (*Store)(nil)
