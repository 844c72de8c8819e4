package enums

import "fmt"

// PreOrderStatus maps to the pre_order_status enum in Postgres.
type PreOrderStatus string

const (
	PreOrderStatusPending   PreOrderStatus = "pending"
	PreOrderStatusCharged   PreOrderStatus = "charged"
	PreOrderStatusRefunded  PreOrderStatus = "refunded"
	PreOrderStatusFulfilled PreOrderStatus = "fulfilled"
)

var validPreOrderStatuses = []PreOrderStatus{
	PreOrderStatusPending,
	PreOrderStatusCharged,
	PreOrderStatusRefunded,
	PreOrderStatusFulfilled,
}

// ConfirmedPreOrderStatuses are the statuses that count toward a design's confirmed quantity.
var ConfirmedPreOrderStatuses = []PreOrderStatus{
	PreOrderStatusCharged,
	PreOrderStatusFulfilled,
}

// String implements fmt.Stringer.
func (s PreOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PreOrderStatus.
func (s PreOrderStatus) IsValid() bool {
	for _, candidate := range validPreOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsConfirmed reports whether the order has been charged.
func (s PreOrderStatus) IsConfirmed() bool {
	for _, candidate := range ConfirmedPreOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePreOrderStatus converts raw input into PreOrderStatus.
func ParsePreOrderStatus(value string) (PreOrderStatus, error) {
	for _, candidate := range validPreOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pre-order status %q", value)
}
