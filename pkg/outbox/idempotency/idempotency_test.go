package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is an in-memory stand-in for the Redis client.
type mapStore struct {
	keys map[string]time.Duration
	err  error
}

func newMapStore() *mapStore { return &mapStore{keys: map[string]time.Duration{}} }

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := s.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (s *mapStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *mapStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *mapStore) IdempotencyKey(scope, id string) string {
	return "dd:idem:" + scope + ":" + id
}

func TestProcessedMarkersArePerConsumer(t *testing.T) {
	store := newMapStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(ctx, "notifications-worker", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "notifications-worker", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "analytics-worker", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	key := "dd:idem:evt:processed:notifications-worker:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.keys[key])

	require.NoError(t, manager.Delete(ctx, "notifications-worker", eventID))
	assert.NotContains(t, store.keys, key)
}

func TestMarkValidatesInput(t *testing.T) {
	manager, err := NewManager(newMapStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.Mark(ctx, " ", "evt-1")
	assert.Error(t, err)
	_, err = manager.Mark(ctx, "square", "")
	assert.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(ctx, "", uuid.New())
	assert.Error(t, err)
	assert.Error(t, manager.Delete(ctx, "worker", uuid.Nil))
}

func TestMarkSurfacesStoreErrors(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Mark(context.Background(), "square", "evt-1")
	assert.ErrorContains(t, err, "redis down")
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMapStore(), -time.Second)
	assert.Error(t, err)
}
