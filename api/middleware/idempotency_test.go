package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/designdrop-backend/pkg/redis"
)

type memoryStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func postOrder(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pre-orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/pre-orders", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/pre-orders/", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/designs/{designID}/settle", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/designs/" + uuid.NewString() + "/settle", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/designs/" + uuid.NewString() + "/approve", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/designs/{designID}/submit", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/payouts/" + uuid.NewString() + "/complete", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/notifications/read-all", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/designs/" + uuid.NewString() + "/votes", 0, false},
		{http.MethodGet, "/api/v1/designs", 0, false},
		{http.MethodPost, "/api/v1/admin/designs//settle", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.want, ttl, "%s %s", tt.method, tt.path)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder(`{}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"status":"charged"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postOrder(`{"quantity":2}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)

	replayed := httptest.NewRecorder()
	handler.ServeHTTP(replayed, postOrder(`{"quantity":2}`, "abc"))
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "application/json", replayed.Header().Get("Content-Type"))
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"data":{"status":"charged"}}`, replayed.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl, key)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), postOrder(`{"quantity":2}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder(`{"quantity":3}`, "xyz"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCodeOf(t, rec))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			// the duplicate arrives while the first request still holds the key
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, postOrder(`{"quantity":1}`, "dup"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postOrder(`{"quantity":1}`, "dup"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Contains(t, inner.Body.String(), "still in progress")
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), postOrder(`{"quantity":2}`, "retry-me"))
	}
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencyScopesKeysPerActor(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, userID := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := postOrder(`{}`, "shared")
		req = req.WithContext(WithActor(req.Context(), auth.Actor{UserID: userID, Role: enums.UserRoleMember}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/designs", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1, calls)
}
