package halolink

// Field identifies one structured metadata field on a platform image. Each
// logical field carries the platform's stable identifier and its display
// label, so update payloads are assembled without runtime string matching.
type Field int

const (
	FieldStudyID Field = iota
	FieldDisease
	FieldImageType
	FieldNeptunePatientStudyID
	FieldCureGNPatientStudyID
	FieldOrgan
	FieldTissueComment
	FieldEventType
	FieldLevel
	FieldBiopsyDate
	FieldBiopsyID
)

var fieldKeys = map[Field]string{
	FieldStudyID:               "studyId",
	FieldDisease:               "disease",
	FieldImageType:             "imageType",
	FieldNeptunePatientStudyID: "nptPatientStudyId",
	FieldCureGNPatientStudyID:  "cgnPatientStudyId",
	FieldOrgan:                 "organ",
	FieldTissueComment:         "tissueComment",
	FieldEventType:             "eventType",
	FieldLevel:                 "level",
	FieldBiopsyDate:            "biopsyDate",
	FieldBiopsyID:              "biopsyId",
}

var fieldLabels = map[Field]string{
	FieldStudyID:               "Study ID",
	FieldDisease:               "Disease",
	FieldImageType:             "Image Type",
	FieldNeptunePatientStudyID: "NPT Patient Study ID",
	FieldCureGNPatientStudyID:  "CGN Patient Study ID",
	FieldOrgan:                 "Organ",
	FieldTissueComment:         "Tissue Comment",
	FieldEventType:             "Event Type",
	FieldLevel:                 "Level",
	FieldBiopsyDate:            "Biopsy Date",
	FieldBiopsyID:              "Biopsy ID",
}

// Key returns the platform's stable field identifier.
func (f Field) Key() string { return fieldKeys[f] }

// Label returns the platform's display name for the field.
func (f Field) Label() string { return fieldLabels[f] }

// FieldUpdate is one name/value pair of the field-update payload.
type FieldUpdate struct {
	Field Field
	Value string
}
