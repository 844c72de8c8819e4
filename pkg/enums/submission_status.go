package enums

import "fmt"

// SubmissionStatus maps to the submission_status enum in Postgres.
type SubmissionStatus string

const (
	SubmissionStatusDraft           SubmissionStatus = "draft"
	SubmissionStatusPendingReview   SubmissionStatus = "pending_review"
	SubmissionStatusCommunityVoting SubmissionStatus = "community_voting"
	SubmissionStatusPendingPricing  SubmissionStatus = "pending_pricing"
	SubmissionStatusInProduction    SubmissionStatus = "in_production"
	SubmissionStatusCompleted       SubmissionStatus = "completed"
	SubmissionStatusRejected        SubmissionStatus = "rejected"
)

var validSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
	SubmissionStatusPendingReview,
	SubmissionStatusCommunityVoting,
	SubmissionStatusPendingPricing,
	SubmissionStatusInProduction,
	SubmissionStatusCompleted,
	SubmissionStatusRejected,
}

// String implements fmt.Stringer.
func (s SubmissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is part of the lifecycle.
func (s SubmissionStatus) IsValid() bool {
	for _, candidate := range validSubmissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusCompleted || s == SubmissionStatusRejected
}

// ParseSubmissionStatus converts raw input into SubmissionStatus.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	for _, candidate := range validSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission status %q", value)
}
