// Package orgs manages organizations, the tenant boundary every scoped
// resource hangs off.
package orgs

import "time"

// Organization is one tenant.
type Organization struct {
	ID             int64
	Name           string
	RegistrationNo string
	Address        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
