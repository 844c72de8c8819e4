package enums

import "fmt"

// CreditReason maps to the credit_reason enum on store credit entries.
type CreditReason string

const (
	CreditReasonTierRefund  CreditReason = "tier_refund"
	CreditReasonForceReject CreditReason = "force_reject_refund"
	CreditReasonAdjustment  CreditReason = "adjustment"
)

var validCreditReasons = []CreditReason{
	CreditReasonTierRefund,
	CreditReasonForceReject,
	CreditReasonAdjustment,
}

// IsValid reports whether the value matches the canonical credit reason enum.
func (r CreditReason) IsValid() bool {
	for _, candidate := range validCreditReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseCreditReason converts raw input into CreditReason.
func ParseCreditReason(value string) (CreditReason, error) {
	for _, candidate := range validCreditReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit reason %q", value)
}
