// Package clients manages the companies an organization performs
// inspections for.
package clients

import "time"

// Client is a customer of one organization.
type Client struct {
	ID             int64
	OrganizationID int64
	Name           string
	ContactName    string
	Email          string
	Phone          string
	Address        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
