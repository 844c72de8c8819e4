package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
)

type deadLetterFunc func(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)

func (f deadLetterFunc) List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	return f(ctx, filter)
}

func TestListDeadLettersAppliesFilters(t *testing.T) {
	admin := adminActor()
	var got outbox.DLQFilter
	store := deadLetterFunc(func(_ context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
		got = filter
		return []models.OutboxDLQ{{
			EventID:     uuid.New(),
			EventType:   enums.EventOrderCaptured,
			ErrorReason: enums.OutboxDLQReasonMaxAttempts,
			Payload:     json.RawMessage(`{"version":1}`),
		}}, nil
	})

	rec := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/?reason=max_attempts&event_type=order_captured&limit=5", nil, &admin, nil)
	ListDeadLetters(store, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, outbox.DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts, EventType: enums.EventOrderCaptured, Limit: 5}, got)
	var body struct {
		Items []deadLetterDTO `json:"items"`
	}
	decodeData(t, rec, &body)
	require.Len(t, body.Items, 1)
	assert.JSONEq(t, `{"version":1}`, string(body.Items[0].Payload))
}

func TestListDeadLettersRejectsUnknownReason(t *testing.T) {
	admin := adminActor()
	store := deadLetterFunc(func(context.Context, outbox.DLQFilter) ([]models.OutboxDLQ, error) {
		t.Fatal("store should not be queried")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	ListDeadLetters(store, testLogger())(rec, newRequest(t, http.MethodGet, "/?reason=lost", nil, &admin, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}
