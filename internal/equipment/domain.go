// Package equipment manages inspected machinery and its maintenance log.
// Maintenance rows have no life of their own: deleting a piece of
// equipment takes its log with it in one transaction.
package equipment

import (
	"time"

	"github.com/google/uuid"
)

// Equipment is a machine owned by one organization.
type Equipment struct {
	ID                int64
	OrganizationID    int64
	Name              string
	SerialNo          string
	Manufacturer      string
	Location          string
	PhotoAttachmentID *uuid.UUID
	CommissionedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DailyMaintenance is one log entry against a piece of equipment.
type DailyMaintenance struct {
	ID          int64
	EquipmentID int64
	PerformedBy int64
	PerformedAt time.Time
	Notes       string
	CreatedAt   time.Time
}
