package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
)

const analyticsConsumerName = "analytics"

type eventInserter interface {
	InsertEvents(ctx context.Context, rows []any) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer streams marketplace events from the analytics subscription into BigQuery.
type Consumer struct {
	client       eventInserter
	subscription receiver
	manager      idempotencyChecker
	logg         *logger.Logger
	eventFilter  map[enums.OutboxEventType]struct{}
}

// NewConsumer builds an analytics consumer that ingests only the given event types.
func NewConsumer(client eventInserter, subscription receiver, manager idempotencyChecker, logg *logger.Logger, events []enums.OutboxEventType) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("analytics subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one analytics event type required")
	}
	filter := make(map[enums.OutboxEventType]struct{}, len(events))
	for _, eventType := range events {
		filter[eventType] = struct{}{}
	}
	return &Consumer{
		client:       client,
		subscription: subscription,
		manager:      manager,
		logg:         logg,
		eventFilter:  filter,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			c.logg.Error(c.logg.WithField(ctx, "message_id", msg.ID), "failed to decode analytics envelope", err)
			msg.Ack()
			return
		}
		if err := c.Process(ctx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process ingests the outbox envelope into BigQuery if the event is supported.
// Errors are returned only when a redelivery could succeed.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := c.eventFilter[eventType]; !ok {
		c.logg.Debug(logCtx, "event not handled by analytics consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return nil
	}

	row, err := buildRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build marketplace row", err)
		return nil
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, analyticsConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	saver := &cbigquery.StructSaver{Struct: row, InsertID: envelope.EventID}
	if err := c.client.InsertEvents(ctx, []any{saver}); err != nil {
		c.logg.Error(logCtx, "failed to insert marketplace row", err)
		_ = c.manager.Delete(ctx, analyticsConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "marketplace event ingested")
	return nil
}

type marketplaceEventRow struct {
	EventID    string             `bigquery:"event_id"`
	EventType  string             `bigquery:"event_type"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	DesignID   *string            `bigquery:"design_id"`
	PreOrderID *string            `bigquery:"pre_order_id"`
	DesignerID *string            `bigquery:"designer_id"`
	UserID     *string            `bigquery:"user_id"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}

func buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*marketplaceEventRow, error) {
	payload := map[string]any{}
	payloadJSON := cbigquery.NullJSON{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		payloadJSON = cbigquery.NullJSON{JSONVal: string(envelope.Data), Valid: true}
	}

	// buyers place orders, voters cast votes; both land in user_id
	userID := stringValue(payload, "buyer_id")
	if userID == nil {
		userID = stringValue(payload, "voter_id")
	}

	return &marketplaceEventRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt.UTC(),
		DesignID:   stringValue(payload, "design_id"),
		PreOrderID: stringValue(payload, "pre_order_id"),
		DesignerID: stringValue(payload, "designer_id"),
		UserID:     userID,
		Payload:    payloadJSON,
	}, nil
}

func stringValue(payload map[string]any, key string) *string {
	raw, ok := payload[key]
	if !ok {
		return nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(str)
	if trimmed == "" || trimmed == uuid.Nil.String() {
		return nil
	}
	return &trimmed
}
