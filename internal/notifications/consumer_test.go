package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

type fakeIdempotency struct {
	seen    map[uuid.UUID]bool
	deleted []uuid.UUID
	err     error
}

func (f *fakeIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[uuid.UUID]bool{}
	}
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeIdempotency) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(f.seen, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

type recordingRepo struct {
	created []*models.Notification
	err     error
}

func (r *recordingRepo) Create(_ context.Context, n *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, n)
	return nil
}

type stubReceiver struct{}

func (stubReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error { return nil }

func newTestConsumer(t *testing.T, repo repository, idem idempotencyChecker) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(repo, stubReceiver{}, idem, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return consumer
}

func notificationMessage(t *testing.T, eventID uuid.UUID, userID uuid.UUID) []byte {
	t.Helper()
	data, err := json.Marshal(RefundIssuedData{Amount: decimal.RequireFromString("12.5"), Reason: enums.CreditReasonTierRefund})
	require.NoError(t, err)
	inner, err := json.Marshal(payloads.NotificationRequestedEvent{
		UserID:   userID,
		Template: enums.NotificationRefundIssued,
		Data:     data,
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       inner,
	})
	require.NoError(t, err)
	return envelope
}

var notificationAttrs = map[string]string{"event_type": string(enums.EventNotificationRequested)}

func TestConsumerStoresNotificationOnce(t *testing.T) {
	repo := &recordingRepo{}
	idem := &fakeIdempotency{}
	consumer := newTestConsumer(t, repo, idem)
	eventID := uuid.New()
	userID := uuid.New()
	msg := notificationMessage(t, eventID, userID)

	result := consumer.process(context.Background(), "m-1", notificationAttrs, msg)
	assert.Equal(t, ack, result)
	result = consumer.process(context.Background(), "m-2", notificationAttrs, msg)
	assert.Equal(t, ack, result)

	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	assert.Equal(t, userID, stored.UserID)
	assert.Equal(t, enums.NotificationRefundIssued, stored.Template)
	assert.Equal(t, "Store credit issued", stored.Title)
	require.NotNil(t, stored.EventID)
	assert.Equal(t, eventID, *stored.EventID)
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &fakeIdempotency{})
	result := consumer.process(context.Background(), "m-1", map[string]string{"event_type": string(enums.EventVoteCast)}, []byte(`{}`))
	assert.Equal(t, ack, result)
	assert.Empty(t, repo.created)
}

func TestConsumerNacksAndReleasesOnStorageError(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	idem := &fakeIdempotency{}
	consumer := newTestConsumer(t, repo, idem)
	eventID := uuid.New()

	result := consumer.process(context.Background(), "m-1", notificationAttrs, notificationMessage(t, eventID, uuid.New()))
	assert.Equal(t, nack, result)
	assert.Equal(t, []uuid.UUID{eventID}, idem.deleted)
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	consumer := newTestConsumer(t, &recordingRepo{}, &fakeIdempotency{err: errors.New("redis down")})
	result := consumer.process(context.Background(), "m-1", notificationAttrs, notificationMessage(t, uuid.New(), uuid.New()))
	assert.Equal(t, nack, result)
}

func TestConsumerAcksUndeliverableMessages(t *testing.T) {
	repo := &recordingRepo{}
	idem := &fakeIdempotency{}
	consumer := newTestConsumer(t, repo, idem)

	for name, body := range map[string][]byte{
		"not json":     []byte("nope"),
		"bad event id": []byte(`{"version":1,"eventId":"x","data":{}}`),
		"bad payload":  []byte(`{"version":1,"eventId":"` + uuid.NewString() + `","data":[]}`),
	} {
		assert.Equal(t, ack, consumer.process(context.Background(), name, notificationAttrs, body), name)
	}
	assert.Empty(t, repo.created)
	assert.Empty(t, idem.seen)
}

func TestRepositoryCreateIgnoresRedeliveryAndPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()
	eventID := uuid.New()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		if i == 0 {
			id = eventID
		}
		require.NoError(t, repo.Create(ctx, &models.Notification{
			EventID:   &id,
			UserID:    userID,
			Template:  enums.NotificationTierAchieved,
			Title:     "Tier unlocked",
			Message:   "price dropped",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{
		EventID:  &eventID,
		UserID:   userID,
		Template: enums.NotificationTierAchieved,
		Title:    "duplicate",
		Message:  "duplicate",
	}))

	page, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)
	assert.Equal(t, eventID, *rest.Items[0].EventID)

	count, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	deleted, err := repo.DeleteOlderThan(ctx, nil, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
