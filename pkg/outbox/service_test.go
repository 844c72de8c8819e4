package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

func TestServiceEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	designID := uuid.New()
	actor := uuid.New()
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventSubmissionStatusChanged,
		AggregateType: enums.AggregateDesignSubmission,
		AggregateID:   designID,
		Actor:         &ActorRef{UserID: actor, Role: "admin"},
		Data:          map[string]string{"to": "community_voting"},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, designID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.UserID)
	assert.JSONEq(t, `{"to":"community_voting"}`, string(envelope.Data))
}

func TestServiceEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	event := DomainEvent{
		EventType:     enums.EventSettlementCompleted,
		AggregateType: enums.AggregateDesignSubmission,
		AggregateID:   uuid.New(),
		Data:          map[string]int{"final_quantity": 110},
	}

	require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{
		EventType:     enums.EventVoteCast,
		AggregateType: enums.AggregateDesignSubmission,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	second := first
	second.AggregateID = uuid.New()
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, assert.AnError, 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	exists, err := repo.Exists(context.Background(), enums.EventVoteCast, enums.AggregateDesignSubmission, second.AggregateID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDLQRepositoryClipsMessageAndFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)

	msg := strings.Repeat("x", maxDLQErrorLen-1) + "é tail"
	eventID := uuid.New()
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderCaptured,
		AggregateType: enums.AggregatePreOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventVoteCast,
		AggregateType: enums.AggregateDesignSubmission,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMalformed,
	}))

	found, err := repo.ForEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen-1)
	assert.True(t, utf8.ValidString(*found.ErrorMessage))

	missing, err := repo.ForEvent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	malformed, err := repo.List(context.Background(), DLQFilter{Reason: enums.OutboxDLQReasonMalformed})
	require.NoError(t, err)
	require.Len(t, malformed, 1)
	assert.Equal(t, enums.EventVoteCast, malformed[0].EventType)

	all, err := repo.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
