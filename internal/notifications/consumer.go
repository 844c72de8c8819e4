package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

const consumerName = "notifications-worker"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// disposition is what happens to a Pub/Sub message after processing.
type disposition int

const (
	ack disposition = iota
	nack
)

// Consumer stores notification_requested events as in-app notifications.
type Consumer struct {
	repo         repository
	subscription receiver
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

func NewConsumer(repo repository, subscription receiver, idempotency idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, errors.New("notifications repository required")
	case subscription == nil:
		return nil, errors.New("notification subscription required")
	case idempotency == nil:
		return nil, errors.New("idempotency manager required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{repo: repo, subscription: subscription, idempotency: idempotency, logg: logg}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process acks anything it can never store (other event types, undecodable
// payloads, unknown templates) and nacks only when storage or the
// idempotency store is unavailable.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) disposition {
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": attrs["event_type"]})
	if attrs["event_type"] != string(enums.EventNotificationRequested) {
		c.logg.Debug(ctx, "skipping non-notification event")
		return ack
	}

	eventID, notification, err := decodeNotification(data)
	if err != nil {
		c.logg.Error(ctx, "dropping undeliverable notification", err)
		return ack
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id": eventID.String(),
		"user_id":  notification.UserID.String(),
		"template": notification.Template,
	})

	seen, err := c.idempotency.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return nack
	}
	if seen {
		c.logg.Info(ctx, "notification already stored")
		return ack
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(ctx, "notification persist failed", err)
		if relErr := c.idempotency.Delete(ctx, consumerName, eventID); relErr != nil {
			c.logg.Error(ctx, "release idempotency marker", relErr)
		}
		return nack
	}
	c.logg.Info(ctx, "notification stored")
	return ack
}

// decodeNotification unwraps the outbox envelope and renders the template.
func decodeNotification(data []byte) (uuid.UUID, *models.Notification, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("event id: %w", err)
	}
	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return uuid.Nil, nil, fmt.Errorf("decode payload: %w", err)
	}
	title, message, err := Render(payload.Template, payload.Data)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return eventID, &models.Notification{
		EventID:  &eventID,
		UserID:   payload.UserID,
		Template: payload.Template,
		Title:    title,
		Message:  message,
		Payload:  payload.Data,
	}, nil
}
