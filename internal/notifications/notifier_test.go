package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

func TestNotifierQueuesOutboxEvent(t *testing.T) {
	conn := dbtest.Open(t)
	notifier, err := NewNotifier(outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, notifier.Notify(context.Background(), conn, userID, enums.NotificationPayoutSent, PayoutSentData{Quarter: "2026-Q4"}))

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventNotificationRequested, rows[0].EventType)
	assert.Equal(t, userID, rows[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	var payload payloads.NotificationRequestedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, enums.NotificationPayoutSent, payload.Template)
	assert.Contains(t, string(payload.Data), "2026-Q4")
}

func TestNotifierRejectsBadInput(t *testing.T) {
	conn := dbtest.Open(t)
	notifier, err := NewNotifier(outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)

	assert.Error(t, notifier.Notify(context.Background(), conn, uuid.Nil, enums.NotificationPayoutSent, nil))
	assert.Error(t, notifier.Notify(context.Background(), conn, uuid.New(), "WELCOME", nil))
}
