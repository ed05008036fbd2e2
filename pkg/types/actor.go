package types

import (
	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/pkg/enums"
)

// Actor is the authenticated caller a service acts on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// CanAccess reports whether the actor owns the resource or is an admin.
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.IsAdmin() || (a.UserID != uuid.Nil && a.UserID == ownerID)
}
