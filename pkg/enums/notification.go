package enums

import "fmt"

// NotificationTemplate names the message template rendered for a notification.
type NotificationTemplate string

const (
	NotificationPreorderConfirmation NotificationTemplate = "PREORDER_CONFIRMATION"
	NotificationTierAchieved         NotificationTemplate = "TIER_ACHIEVED"
	NotificationRefundIssued         NotificationTemplate = "REFUND_ISSUED"
	NotificationPayoutSent           NotificationTemplate = "PAYOUT_SENT"
)

var validNotificationTemplates = []NotificationTemplate{
	NotificationPreorderConfirmation,
	NotificationTierAchieved,
	NotificationRefundIssued,
	NotificationPayoutSent,
}

// IsValid checks whether the given template matches the canonical enum.
func (n NotificationTemplate) IsValid() bool {
	for _, candidate := range validNotificationTemplates {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationTemplate converts raw strings into NotificationTemplate.
func ParseNotificationTemplate(value string) (NotificationTemplate, error) {
	for _, candidate := range validNotificationTemplates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification template %q", value)
}
