// Package attachments binds uploaded documents to named slots on owning
// records and guarantees one attachment row per (document, field, owner).
package attachments

import (
	"time"

	"github.com/google/uuid"
)

// Field names a semantic slot an attachment can occupy. The set is closed
// per resource family; unknown values are rejected before any store access.
type Field string

const (
	FieldOperatorCertification      Field = "OPERATOR_CERTIFICATION"
	FieldStructureBodyCertificate   Field = "STRUCTURE_BODY_CERTIFICATE"
	FieldStructureTubeCertificate   Field = "STRUCTURE_TUBE_CERTIFICATE"
	FieldInjectorGaugePhotos        Field = "INJECTOR_GAUGE_PHOTOS"
	FieldValveCalibrationCert       Field = "VALVE_CALIBRATION_CERTIFICATE"
	FieldInstrumentCalibrationCert  Field = "INSTRUMENT_CALIBRATION_CERTIFICATE"
	FieldBombPhoto                  Field = "BOMB_PHOTO"
	FieldEquipmentPhoto             Field = "EQUIPMENT_PHOTO"
	FieldStoragePlatePhoto          Field = "STORAGE_PLATE_PHOTO"
	FieldReportSignature            Field = "REPORT_SIGNATURE"
	FieldPressureGaugeCertificate   Field = "PRESSURE_GAUGE_CERTIFICATE"
	FieldSafetyValveTestCertificate Field = "SAFETY_VALVE_TEST_CERTIFICATE"
)

var knownFields = map[Field]struct{}{
	FieldOperatorCertification:      {},
	FieldStructureBodyCertificate:   {},
	FieldStructureTubeCertificate:   {},
	FieldInjectorGaugePhotos:        {},
	FieldValveCalibrationCert:       {},
	FieldInstrumentCalibrationCert:  {},
	FieldBombPhoto:                  {},
	FieldEquipmentPhoto:             {},
	FieldStoragePlatePhoto:          {},
	FieldReportSignature:            {},
	FieldPressureGaugeCertificate:   {},
	FieldSafetyValveTestCertificate: {},
}

// KnownField reports whether f belongs to the closed enumeration.
func KnownField(f Field) bool {
	_, ok := knownFields[f]
	return ok
}

// Attachment links one document to one semantic slot on one owning record.
type Attachment struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	FieldName  Field
	OwnerID    *int64
	CreatedAt  time.Time
}
