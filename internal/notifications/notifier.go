package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

// Notifier queues templated notifications through the outbox so they are only
// delivered when the surrounding transaction commits.
type Notifier struct {
	emitter outbox.Emitter
}

func NewNotifier(emitter outbox.Emitter) (*Notifier, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Notifier{emitter: emitter}, nil
}

// Notify records a notification_requested event for userID.
func (n *Notifier) Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, template enums.NotificationTemplate, data any) error {
	if userID == uuid.Nil {
		return fmt.Errorf("notification recipient required")
	}
	if !template.IsValid() {
		return fmt.Errorf("invalid notification template %q", template)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	return n.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   userID,
		Data: payloads.NotificationRequestedEvent{
			UserID:   userID,
			Template: template,
			Data:     raw,
		},
	})
}
