package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

// Actor is the acting user passed explicitly into every domain operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// System is the actor used by the sweep and other background jobs.
var System = Actor{Role: enums.UserRoleAdmin}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func (a Actor) IsDesigner() bool {
	return a.Role == enums.UserRoleDesigner
}

// IsSystem reports whether the actor is a background job rather than a user.
func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil && a.IsAdmin()
}

// RequireUser fails unless the actor identifies a real user.
func (a Actor) RequireUser() error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown user role")
	}
	return nil
}

// RequireAdmin fails unless the actor is an admin.
func (a Actor) RequireAdmin() error {
	if !a.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// RequireRole fails unless the actor holds one of the roles.
func (a Actor) RequireRole(roles ...enums.UserRole) error {
	for _, role := range roles {
		if a.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role").
		WithDetails(map[string]any{"role": a.Role})
}
