package squarewebhook

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/designdrop-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/designdrop-backend/pkg/redis"
)

// IdempotencyGuard remembers which Square event ids were applied.
type IdempotencyGuard struct {
	markers *idempotency.Manager
	scope   string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	markers, err := idempotency.NewManager(store, ttl)
	if err != nil {
		return nil, err
	}
	return &IdempotencyGuard{markers: markers, scope: scope}, nil
}

// CheckAndMark reports whether eventID was already seen and marks it if not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.markers.Mark(ctx, g.scope, eventID)
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	return g.markers.Release(ctx, g.scope, eventID)
}
