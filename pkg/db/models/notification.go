package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to a user.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID   *uuid.UUID                 `gorm:"column:event_id;type:uuid;uniqueIndex:ux_notifications_event_user,priority:1"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_notifications_event_user,priority:2"`
	Template  enums.NotificationTemplate `gorm:"column:template;not null"`
	Title     string                     `gorm:"column:title;not null"`
	Message   string                     `gorm:"column:message;not null"`
	Payload   json.RawMessage            `gorm:"column:payload;type:jsonb"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
