// Package reports manages composite inspection reports. Section payloads
// are opaque JSON; the engine only cares about tenancy, the instruments a
// report cites, and the documents its sections attach.
package reports

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/attachments"
)

// Report is one inspection report belonging to a client of an organization.
type Report struct {
	ID             int64
	OrganizationID int64
	ClientID       int64
	Title          string
	Kind           string
	Payload        json.RawMessage
	InstrumentIDs  []int64
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SectionAttachments maps a report's slots to resolved attachment ids.
type SectionAttachments map[attachments.Field]uuid.UUID

// sectionFields is the closed set of slots a report section may attach.
// Equipment and instrument photos belong to their own records, not here.
var sectionFields = []attachments.Field{
	attachments.FieldOperatorCertification,
	attachments.FieldStructureBodyCertificate,
	attachments.FieldStructureTubeCertificate,
	attachments.FieldInjectorGaugePhotos,
	attachments.FieldValveCalibrationCert,
	attachments.FieldBombPhoto,
	attachments.FieldStoragePlatePhoto,
	attachments.FieldReportSignature,
	attachments.FieldPressureGaugeCertificate,
	attachments.FieldSafetyValveTestCertificate,
}

// SectionField reports whether a slot may appear on a report.
func SectionField(f attachments.Field) bool {
	for _, candidate := range sectionFields {
		if candidate == f {
			return true
		}
	}
	return false
}
