// Package instruments manages measuring devices referenced by inspection
// reports. Deleting an instrument is blocked while reports cite it.
package instruments

import (
	"time"

	"github.com/google/uuid"
)

// Instrument is a calibrated measuring device owned by one organization.
type Instrument struct {
	ID                      int64
	OrganizationID          int64
	Name                    string
	SerialNo                string
	Model                   string
	CalibrationDue          *time.Time
	CalibrationAttachmentID *uuid.UUID
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
