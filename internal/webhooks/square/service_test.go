package squarewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/internal/preorders"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

type stubOrders struct {
	confirmed map[uuid.UUID]string
	failed    map[uuid.UUID]string
	err       error
}

func newStubOrders() *stubOrders {
	return &stubOrders{confirmed: map[uuid.UUID]string{}, failed: map[uuid.UUID]string{}}
}

func (s *stubOrders) ConfirmCapture(_ context.Context, orderID uuid.UUID, chargeID string) (*preorders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.confirmed[orderID] = chargeID
	return &preorders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrders) RecordCaptureFailure(_ context.Context, orderID uuid.UUID, reason string) (*preorders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.failed[orderID] = reason
	return &preorders.OrderDTO{ID: orderID}, nil
}

func newTestService(t *testing.T, orders *stubOrders) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders: orders,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func decodeEvent(t *testing.T, raw string) *SquareWebhookEvent {
	t.Helper()
	var event SquareWebhookEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return &event
}

func TestHandleEventConfirmsCompletedPayment(t *testing.T) {
	orders := newStubOrders()
	svc := newTestService(t, orders)
	orderID := uuid.New()

	event := decodeEvent(t, `{"event_id":"evt-1","type":"payment.updated","data":{"type":"payment","id":"pay-1",
		"object":{"payment":{"id":"pay-1","status":"COMPLETED","reference_id":"`+orderID.String()+`"}}}}`)

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, "pay-1", orders.confirmed[orderID])
	assert.Empty(t, orders.failed)
}

func TestHandleEventRecordsFailure(t *testing.T) {
	orders := newStubOrders()
	svc := newTestService(t, orders)
	orderID := uuid.New()

	event := decodeEvent(t, `{"type":"payment.updated","data":{"object":{"payment":{"id":"pay-2","status":"FAILED",
		"reference_id":"`+orderID.String()+`","card_details":{"status":"FAILED","errors":[{"code":"CARD_DECLINED","detail":"card declined"}]}}}}}`)

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, "card declined", orders.failed[orderID])
}

func TestHandleEventIgnoresUnrelatedEvents(t *testing.T) {
	orders := newStubOrders()
	svc := newTestService(t, orders)

	cases := []*SquareWebhookEvent{
		{Type: "refund.created"},
		{Type: "payment.updated", Data: SquareWebhookData{Object: SquareWebhookObject{Payment: &SquarePayment{ID: "p", Status: "COMPLETED"}}}},
		{Type: "payment.updated", Data: SquareWebhookData{Object: SquareWebhookObject{Payment: &SquarePayment{ID: "p", Status: "COMPLETED", ReferenceID: "not-a-uuid"}}}},
		{Type: "payment.created", Data: SquareWebhookData{Object: SquareWebhookObject{Payment: &SquarePayment{ID: "p", Status: "PENDING", ReferenceID: uuid.NewString()}}}},
	}
	for _, event := range cases {
		require.NoError(t, svc.HandleEvent(context.Background(), event))
	}
	assert.Empty(t, orders.confirmed)
	assert.Empty(t, orders.failed)
}

func TestHandleEventUnknownOrderIsAcknowledged(t *testing.T) {
	orders := newStubOrders()
	orders.err = pkgerrors.New(pkgerrors.CodeNotFound, "pre-order not found")
	svc := newTestService(t, orders)

	event := &SquareWebhookEvent{Type: "payment.updated", Data: SquareWebhookData{Object: SquareWebhookObject{
		Payment: &SquarePayment{ID: "p", Status: "COMPLETED", ReferenceID: uuid.NewString()},
	}}}
	assert.NoError(t, svc.HandleEvent(context.Background(), event))
}

func TestHandleEventPropagatesDependencyErrors(t *testing.T) {
	orders := newStubOrders()
	orders.err = pkgerrors.New(pkgerrors.CodeDependency, "db down")
	svc := newTestService(t, orders)

	event := &SquareWebhookEvent{Type: "payment.updated", Data: SquareWebhookData{Object: SquareWebhookObject{
		Payment: &SquarePayment{ID: "p", Status: "COMPLETED", ReferenceID: uuid.NewString()},
	}}}
	assert.Error(t, svc.HandleEvent(context.Background(), event))
	assert.Error(t, svc.HandleEvent(context.Background(), nil))
}

type memoryIdempotencyStore struct {
	data map[string]string
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &memoryIdempotencyStore{data: map[string]string{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "square")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(context.Background(), "evt-1"))
	seen, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = NewIdempotencyGuard(nil, time.Hour, "square")
	assert.Error(t, err)
}
