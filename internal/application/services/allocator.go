package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/ports"
)

// NewIDAllocator builds the allocator named by kind ("sequential", "random" or "uuid")
func NewIDAllocator(kind string, width, maxAttempts int) (ports.IDAllocator, error) {
	switch kind {
	case "sequential":
		return NewSequentialAllocator(width), nil
	case "random":
		return NewRandomAllocator(width, maxAttempts, rand.New(rand.NewSource(time.Now().UnixNano()))), nil
	case "uuid":
		return NewUUIDAllocator(maxAttempts), nil
	}
	return nil, fmt.Errorf("unknown id allocator %q", kind)
}

// idRange returns the inclusive bounds of fixed-width decimal identifiers
func idRange(width int) (int64, int64) {
	lo := int64(1)
	for i := 1; i < width; i++ {
		lo *= 10
	}
	return lo, lo*10 - 1
}

// SequentialAllocator issues fixed-width decimal ids one above the largest in the store.
// Once the top of the range is taken it hands out the lowest free id instead.
type SequentialAllocator struct {
	width int
}

// NewSequentialAllocator creates a sequential allocator for ids of width digits
func NewSequentialAllocator(width int) *SequentialAllocator {
	return &SequentialAllocator{width: width}
}

func (a *SequentialAllocator) Allocate(store *entities.CartStore) (string, error) {
	lo, hi := idRange(a.width)

	next := lo
	for _, id := range store.IDs() {
		if len(id) != a.width {
			continue
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n < lo {
			continue
		}
		if n >= next {
			next = n + 1
		}
	}

	if next <= hi {
		return strconv.FormatInt(next, 10), nil
	}

	for n := lo; n <= hi; n++ {
		if id := strconv.FormatInt(n, 10); !store.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: all %d-digit ids are taken", entities.ErrIDSpaceExhausted, a.width)
}

// RandomAllocator samples fixed-width decimal ids uniformly, rejecting ids already in use
type RandomAllocator struct {
	width       int
	maxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAllocator creates a random allocator. maxAttempts bounds the rejection loop.
func NewRandomAllocator(width, maxAttempts int, rng *rand.Rand) *RandomAllocator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RandomAllocator{width: width, maxAttempts: maxAttempts, rng: rng}
}

func (a *RandomAllocator) Allocate(store *entities.CartStore) (string, error) {
	lo, hi := idRange(a.width)

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < a.maxAttempts; i++ {
		id := strconv.FormatInt(lo+a.rng.Int63n(hi-lo+1), 10)
		if !store.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %d attempts collided", entities.ErrIDSpaceExhausted, a.maxAttempts)
}

// UUIDAllocator issues random v4 UUIDs
type UUIDAllocator struct {
	maxAttempts int
}

// NewUUIDAllocator creates a UUID allocator
func NewUUIDAllocator(maxAttempts int) *UUIDAllocator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &UUIDAllocator{maxAttempts: maxAttempts}
}

func (a *UUIDAllocator) Allocate(store *entities.CartStore) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		id := uuid.NewString()
		if !store.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: uuid collided %d times", entities.ErrIDSpaceExhausted, a.maxAttempts)
}
