package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const inFlight = "IN_FLIGHT"

var ErrInFlight = errors.New("request with this idempotency key is still running")

// Idempotency guards a create request with a caller supplied key. The first
// request claims the key; later ones either see the id of the order it
// produced or find it still running.
type Idempotency struct {
	cache Cache
	ttl   time.Duration
}

func NewIdempotency(c Cache, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{cache: c, ttl: ttl}
}

func (i *Idempotency) key(ownerID, key string) string {
	return i.cache.GenerateKey("create", ownerID+":"+key)
}

// Claim returns ("", nil) when the caller now owns the key, the order id
// when an earlier request already completed, or ErrInFlight.
func (i *Idempotency) Claim(ctx context.Context, ownerID, key string) (string, error) {
	k := i.key(ownerID, key)
	ok, err := i.cache.SetNX(ctx, k, inFlight, i.ttl)
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := i.cache.Get(ctx, k)
	if err != nil {
		return "", fmt.Errorf("read idempotency key: %w", err)
	}
	switch val {
	case inFlight:
		return "", ErrInFlight
	case "":
		// Expired between the two calls; try once more.
		ok, err := i.cache.SetNX(ctx, k, inFlight, i.ttl)
		if err != nil {
			return "", fmt.Errorf("claim idempotency key: %w", err)
		}
		if !ok {
			return "", ErrInFlight
		}
		return "", nil
	default:
		return val, nil
	}
}

func (i *Idempotency) Complete(ctx context.Context, ownerID, key, orderID string) error {
	return i.cache.Set(ctx, i.key(ownerID, key), orderID, i.ttl)
}

// Release frees the key after a failed request so the caller may retry.
func (i *Idempotency) Release(ctx context.Context, ownerID, key string) error {
	return i.cache.Delete(ctx, i.key(ownerID, key))
}
