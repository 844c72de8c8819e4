// Package idempotency records which deliveries a consumer has already
// handled, so at-least-once transports apply each event once.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/redis"
)

// Manager keeps one Redis marker per (scope, id) for ttl. A zero ttl keeps
// markers forever.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Mark sets the marker and reports whether it was already there.
func (m *Manager) Mark(ctx context.Context, scope, id string) (bool, error) {
	key, err := m.key(scope, id)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Release removes the marker so a redelivery is processed again.
func (m *Manager) Release(ctx context.Context, scope, id string) error {
	key, err := m.key(scope, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(scope, id string) (string, error) {
	scope, id = strings.TrimSpace(scope), strings.TrimSpace(id)
	if scope == "" {
		return "", errors.New("idempotency scope is required")
	}
	if id == "" {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(scope, id), nil
}

// processedScope namespaces outbox event markers per consumer.
func processedScope(consumer string) string {
	if strings.TrimSpace(consumer) == "" {
		return ""
	}
	return "evt:processed:" + consumer
}

// CheckAndMarkProcessed is Mark for outbox events handled by consumer.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return m.Mark(ctx, processedScope(consumer), eventID.String())
}

func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return m.Release(ctx, processedScope(consumer), eventID.String())
}
