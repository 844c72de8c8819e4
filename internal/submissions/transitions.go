package submissions

import (
	"fmt"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

// Guard names reported in InvalidTransition details.
const (
	GuardTransitionAllowed  = "transition_allowed"
	GuardNonTerminal        = "non_terminal_state"
	GuardRequiredFields     = "required_fields_present"
	GuardReasonRequired     = "reason_required"
	GuardVotingWindowClosed = "voting_window_elapsed"
	GuardPreorderWindowOver = "preorder_window_elapsed"
	GuardPricingConfigured  = "tier_schedule_configured"
)

var transitions = map[enums.SubmissionStatus][]enums.SubmissionStatus{
	enums.SubmissionStatusDraft:           {enums.SubmissionStatusPendingReview, enums.SubmissionStatusRejected},
	enums.SubmissionStatusPendingReview:   {enums.SubmissionStatusCommunityVoting, enums.SubmissionStatusRejected},
	enums.SubmissionStatusCommunityVoting: {enums.SubmissionStatusPendingPricing, enums.SubmissionStatusRejected},
	enums.SubmissionStatusPendingPricing:  {enums.SubmissionStatusInProduction, enums.SubmissionStatusRejected},
	enums.SubmissionStatusInProduction:    {enums.SubmissionStatusCompleted, enums.SubmissionStatusRejected},
}

// TransitionDetails is attached to every INVALID_TRANSITION error.
type TransitionDetails struct {
	Current   enums.SubmissionStatus `json:"current"`
	Requested enums.SubmissionStatus `json:"requested"`
	Guard     string                 `json:"guard"`
	Missing   []string               `json:"missing,omitempty"`
}

// CanTransition reports whether the lifecycle has an edge from -> to.
func CanTransition(from, to enums.SubmissionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an INVALID_TRANSITION error when from -> to is not an edge.
func CheckTransition(from, to enums.SubmissionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	guard := GuardTransitionAllowed
	if from.IsTerminal() {
		guard = GuardNonTerminal
	}
	return InvalidTransition(from, to, guard)
}

// InvalidTransition builds the error raised when a guard does not hold.
func InvalidTransition(current, requested enums.SubmissionStatus, guard string) *pkgerrors.Error {
	return invalidTransition(TransitionDetails{Current: current, Requested: requested, Guard: guard})
}

func invalidTransition(details TransitionDetails) *pkgerrors.Error {
	msg := fmt.Sprintf("cannot move design from %s to %s: %s", details.Current, details.Requested, details.Guard)
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).WithDetails(details)
}

// requireStatus rejects the request unless the design is currently in want.
func requireStatus(current, want, requested enums.SubmissionStatus) error {
	if current == want {
		return nil
	}
	if current.IsTerminal() {
		return InvalidTransition(current, requested, GuardNonTerminal)
	}
	return InvalidTransition(current, requested, GuardTransitionAllowed)
}
