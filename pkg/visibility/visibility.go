package visibility

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

var publicStatuses = []enums.SubmissionStatus{
	enums.SubmissionStatusCommunityVoting,
	enums.SubmissionStatusPendingPricing,
	enums.SubmissionStatusInProduction,
	enums.SubmissionStatusCompleted,
}

// PublicStatuses returns the lifecycle states anyone may browse.
func PublicStatuses() []enums.SubmissionStatus {
	out := make([]enums.SubmissionStatus, len(publicStatuses))
	copy(out, publicStatuses)
	return out
}

// IsPublic reports whether a design in status is visible without ownership.
func IsPublic(status enums.SubmissionStatus) bool {
	for _, s := range publicStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanSeeAll reports whether viewer may see every status for the given
// designer filter: admins always, designers only for their own catalogue.
func CanSeeAll(viewer *auth.Actor, designerID *uuid.UUID) bool {
	if viewer == nil {
		return false
	}
	if viewer.Role == enums.UserRoleAdmin {
		return true
	}
	return designerID != nil && *designerID == viewer.UserID && viewer.UserID != uuid.Nil
}

// EnsureDesignVisible hides drafts, reviews and rejections from everyone but
// the owning designer and admins. Hidden designs read as not found.
func EnsureDesignVisible(viewer *auth.Actor, designerID uuid.UUID, status enums.SubmissionStatus) error {
	if IsPublic(status) || CanSeeAll(viewer, &designerID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
}
