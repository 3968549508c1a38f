package service

import "github.com/google/uuid"

// Principal is the authenticated caller. Every operation that needs a role
// check receives one explicitly.
type Principal struct {
	UserID uuid.UUID
	Admin  bool
}

func (p Principal) RequireAdmin() error {
	if !p.Admin {
		return ErrForbidden
	}
	return nil
}

// RequireSelfOrAdmin allows access to resources owned by userID.
func (p Principal) RequireSelfOrAdmin(userID uuid.UUID) error {
	if p.Admin || p.UserID == userID {
		return nil
	}
	return ErrForbidden
}
