package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/infrastructure/metrics"
	"github.com/storefront/core/internal/ports"
)

// CartService handles visitor cart operations
type CartService struct {
	cartRepo ports.CartRepository
	ids      ports.IDAllocator
	strict   bool
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewCartService creates a new cart service. With strict set, an ignored or
// invalid delta fails the request and nothing is persisted.
func NewCartService(cartRepo ports.CartRepository, ids ports.IDAllocator, strict bool, m *metrics.Metrics, logger *logger.Logger) *CartService {
	return &CartService{
		cartRepo: cartRepo,
		ids:      ids,
		strict:   strict,
		metrics:  m,
		logger:   logger.WithComponent("cart_service"),
	}
}

// ResolveVisitor reuses incomingID when it names a record in store. Otherwise
// it allocates a fresh identifier and inserts a zeroed record for it.
func ResolveVisitor(store *entities.CartStore, incomingID string, ids ports.IDAllocator) (string, bool, error) {
	if incomingID != "" && store.Has(incomingID) {
		return incomingID, false, nil
	}

	id, err := ids.Allocate(store)
	if err != nil {
		return "", false, fmt.Errorf("allocate visitor id: %w", err)
	}
	if err := store.Insert(id, entities.Counts{}); err != nil {
		return "", false, fmt.Errorf("insert visitor: %w", err)
	}
	return id, true, nil
}

// AddToCart resolves the visitor, applies one delta and persists the store
func (s *CartService) AddToCart(ctx context.Context, req ports.AddToCartRequest) (*ports.CartResult, error) {
	var result ports.CartResult

	err := s.cartRepo.Update(ctx, func(store *entities.CartStore) error {
		id, created, err := ResolveVisitor(store, req.VisitorID, s.ids)
		if err != nil {
			return err
		}

		// An empty item is a plain cart view.
		delta := entities.DeltaResult{Outcome: entities.DeltaIgnored, Kind: req.Item, Count: req.Count}
		if req.Item != "" {
			delta = store.ApplyDelta(id, req.Item, req.Count)
		}
		if s.strict && delta.Err != nil {
			return delta.Err
		}

		counts, _ := store.Get(id)
		result = ports.CartResult{
			VisitorID: id,
			Created:   created,
			Counts:    counts,
			Delta:     delta,
		}
		return nil
	})
	if err != nil {
		s.metrics.CartUpdated(itemLabel(req.Item), string(outcomeOf(err)))
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	if result.Created {
		s.metrics.VisitorCreated()
	}
	s.metrics.CartUpdated(itemLabel(req.Item), string(result.Delta.Outcome))

	if result.Delta.Err != nil {
		s.logger.WithVisitorID(result.VisitorID).Warnw("Cart delta not applied",
			"outcome", result.Delta.Outcome,
			"error", result.Delta.Err,
		)
	}
	s.logger.LogCartUpdate(result.VisitorID, string(req.Item), req.Count, string(result.Delta.Outcome), result.Created)

	return &result, nil
}

// GetVisitor returns the record for id
func (s *CartService) GetVisitor(ctx context.Context, id string) (*entities.VisitorRecord, error) {
	store, err := s.cartRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart store: %w", err)
	}

	counts, ok := store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrVisitorNotFound, id)
	}
	return &entities.VisitorRecord{ID: id, Counts: counts}, nil
}

// ListVisitors returns every record in store order
func (s *CartService) ListVisitors(ctx context.Context) ([]entities.VisitorRecord, error) {
	store, err := s.cartRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart store: %w", err)
	}
	return store.Records(), nil
}

func outcomeOf(err error) entities.DeltaOutcome {
	if errors.Is(err, entities.ErrUnknownItem) {
		return entities.DeltaIgnored
	}
	if errors.Is(err, entities.ErrInvalidDelta) || errors.Is(err, entities.ErrVisitorNotFound) {
		return entities.DeltaInvalid
	}
	return "error"
}

// itemLabel keeps the item metric label inside the known item set
func itemLabel(kind entities.ItemKind) string {
	switch {
	case kind == "":
		return "none"
	case !kind.IsValid():
		return "other"
	}
	return string(kind)
}
