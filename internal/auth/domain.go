// Package auth resolves sessions to canonical actors and manages user
// accounts.
package auth

import (
	"time"

	"github.com/inspectra-app/inspectra/internal/ability"
)

// User represents a persisted user account.
type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	Role           ability.Role
	OrganizationID *int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Actor derives the request-scoped principal from persisted state. The
// result is immutable for the duration of one request.
func (u User) Actor() ability.Actor {
	status := ability.StatusInactive
	if u.IsActive {
		status = ability.StatusActive
	}
	return ability.Actor{
		ID:                 u.ID,
		Role:               u.Role,
		HomeOrganizationID: u.OrganizationID,
		Status:             status,
	}
}
