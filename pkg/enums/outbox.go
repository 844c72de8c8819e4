package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column on outbox_events.
type OutboxAggregateType string

const (
	AggregateDesignSubmission OutboxAggregateType = "design_submission"
	AggregatePreOrder         OutboxAggregateType = "pre_order"
	AggregatePayout           OutboxAggregateType = "payout"
	AggregateNotification     OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDesignSubmission,
	AggregatePreOrder,
	AggregatePayout,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column on outbox_events.
type OutboxEventType string

const (
	EventSubmissionStatusChanged OutboxEventType = "submission_status_changed"
	EventVoteCast                OutboxEventType = "vote_cast"
	EventOrderCaptured           OutboxEventType = "order_captured"
	EventOrderCaptureFailed      OutboxEventType = "order_capture_failed"
	EventOrderRefunded           OutboxEventType = "order_refunded"
	EventTierAchieved            OutboxEventType = "tier_achieved"
	EventSettlementCompleted     OutboxEventType = "settlement_completed"
	EventPayoutStatusChanged     OutboxEventType = "payout_status_changed"
	EventNotificationRequested   OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSubmissionStatusChanged,
	EventVoteCast,
	EventOrderCaptured,
	EventOrderCaptureFailed,
	EventOrderRefunded,
	EventTierAchieved,
	EventSettlementCompleted,
	EventPayoutStatusChanged,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
