package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to its topic and payload type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	Analytics      bool
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish no matter how often
// it is retried.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry is the fixed table of publishable marketplace events.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// route builds a descriptor whose payload decodes into a fresh *T.
func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, analytics bool) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		Analytics:      analytics,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry binds every event type to a configured topic. Events with
// Analytics set are mirrored to the analytics topic by the publisher.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	for _, topic := range [][2]string{
		{"designs", cfg.DesignsTopic},
		{"orders", cfg.OrdersTopic},
		{"notification", cfg.NotificationTopic},
	} {
		if topic[1] == "" {
			missing = append(missing, fmt.Errorf("%s topic is required", topic[0]))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	const (
		design      = enums.AggregateDesignSubmission
		order       = enums.AggregatePreOrder
		analytics   = true
		operational = false
	)
	designs, orders := cfg.DesignsTopic, cfg.OrdersTopic
	table := []EventDescriptor{
		route[payloads.SubmissionStatusChangedEvent](enums.EventSubmissionStatusChanged, design, designs, analytics),
		route[payloads.VoteCastEvent](enums.EventVoteCast, design, designs, analytics),
		route[payloads.TierAchievedEvent](enums.EventTierAchieved, design, designs, analytics),
		route[payloads.SettlementCompletedEvent](enums.EventSettlementCompleted, design, designs, analytics),
		route[payloads.OrderCapturedEvent](enums.EventOrderCaptured, order, orders, analytics),
		route[payloads.OrderCaptureFailedEvent](enums.EventOrderCaptureFailed, order, orders, operational),
		route[payloads.OrderRefundedEvent](enums.EventOrderRefunded, order, orders, analytics),
		route[payloads.PayoutStatusChangedEvent](enums.EventPayoutStatusChanged, enums.AggregatePayout, orders, operational),
		route[payloads.NotificationRequestedEvent](enums.EventNotificationRequested, enums.AggregateNotification, cfg.NotificationTopic, operational),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, desc := range table {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// AnalyticsEventTypes lists the mirrored event types in name order.
func (r *EventRegistry) AnalyticsEventTypes() []enums.OutboxEventType {
	var out []enums.OutboxEventType
	for eventType, desc := range r.entries {
		if desc.Analytics {
			out = append(out, eventType)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, malformed("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, malformed("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, malformed("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, malformed("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, malformed("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, malformed("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
