package ports

import (
	"context"

	"github.com/storefront/core/internal/domain/entities"
)

// CartRepository defines the persistence operations of the cart store.
// A store is loaded whole, mutated in memory and persisted whole.
type CartRepository interface {
	Load(ctx context.Context) (*entities.CartStore, error)
	Persist(ctx context.Context, store *entities.CartStore) error
	// Update runs Load, fn and Persist as one unit. Nothing is persisted when fn fails.
	Update(ctx context.Context, fn func(store *entities.CartStore) error) error
	HealthCheck(ctx context.Context) error
}

// IDAllocator hands out visitor identifiers that are absent from store
type IDAllocator interface {
	Allocate(store *entities.CartStore) (string, error)
}

// TokenCodec converts visitor identifiers to and from the cookie value
type TokenCodec interface {
	Encode(visitorID string) (string, error)
	Decode(token string) (string, error)
}
