package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
)

// DeadLetterLister reads dead-lettered outbox rows.
type DeadLetterLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

type deadLetterDTO struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         *string                    `json:"error,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
	Payload       json.RawMessage            `json:"payload"`
}

// ListDeadLetters lets admins inspect events the outbox publisher gave up on.
func ListDeadLetters(store DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("dead letters"))
			return
		}
		filter, err := deadLetterFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := store.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		items := make([]deadLetterDTO, 0, len(rows))
		for _, row := range rows {
			items = append(items, deadLetterDTO{
				EventID:       row.EventID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				Reason:        row.ErrorReason,
				Error:         row.ErrorMessage,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
				Payload:       row.Payload,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func deadLetterFilter(r *http.Request) (outbox.DLQFilter, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return outbox.DLQFilter{}, err
	}
	filter := outbox.DLQFilter{Limit: limit}
	q := r.URL.Query()
	if raw := q.Get("reason"); raw != "" {
		filter.Reason = enums.OutboxDLQErrorReason(raw)
		if !filter.Reason.IsValid() {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason").WithDetails(map[string]any{"field": "reason"})
		}
	}
	if raw := q.Get("event_type"); raw != "" {
		filter.EventType = enums.OutboxEventType(raw)
		if !filter.EventType.IsValid() {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "unknown event type").WithDetails(map[string]any{"field": "event_type"})
		}
	}
	return filter, nil
}
