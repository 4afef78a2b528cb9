package reconcile

import (
	"strings"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/metadata"
)

// Field names reported in the report's missing-field warnings. The joint
// patient-id name covers both alternate schemes, which are exempt from
// individual checks.
const missingPatientID = "patient_study_id"

type requiredField struct {
	name  string
	value func(*metadata.SlideMetadata) string
}

// Slide-level fields come first, then the shared parent fields; the warning
// text lists names in this order.
var slideFields = []requiredField{
	{"barcode", func(s *metadata.SlideMetadata) string { return s.Barcode }},
	{"level", func(s *metadata.SlideMetadata) string { return s.Level }},
	{"stain", func(s *metadata.SlideMetadata) string { return s.Stain }},
}

var imageTypeField = requiredField{"image_type", func(s *metadata.SlideMetadata) string { return s.ImageType.String() }}

var parentFields = []requiredField{
	{"biopsy_id", func(s *metadata.SlideMetadata) string { return s.Parent.BiopsyID }},
	{"study_id", func(s *metadata.SlideMetadata) string { return s.Parent.StudyID }},
	{"organ", func(s *metadata.SlideMetadata) string { return s.Parent.Organ }},
	{"biopsy_date", func(s *metadata.SlideMetadata) string { return s.Parent.BiopsyDate }},
	{"disease", func(s *metadata.SlideMetadata) string { return s.Parent.Disease }},
	{"tissue_comment", func(s *metadata.SlideMetadata) string { return s.Parent.TissueComment }},
	{"event_type", func(s *metadata.SlideMetadata) string { return s.Parent.EventType }},
}

// Validate checks the slide for completeness given its image type. Whole
// slide images require every slide field plus the parent fields; other image
// types require only the image type plus the parent fields. The two patient
// identifier schemes are checked jointly: at least one must be populated.
//
// When anything is missing, the slide is flagged and the warning is appended
// to its diagnostic history; a prior error state is never cleared.
func Validate(slide *metadata.SlideMetadata) (bool, []string) {
	var checks []requiredField
	if slide.ImageType == metadata.ImageTypeWholeSlide {
		checks = append(checks, slideFields...)
	}
	checks = append(checks, imageTypeField)
	checks = append(checks, parentFields...)

	var missing []string
	for _, field := range checks {
		if strings.TrimSpace(field.value(slide)) == "" {
			missing = append(missing, field.name)
		}
	}
	if !slide.Parent.HasPatientID() {
		missing = append(missing, missingPatientID)
	}

	if len(missing) == 0 {
		return true, nil
	}
	slide.RecordMissing(missingFieldsWarning(missing))
	return false, missing
}

func missingFieldsWarning(missing []string) string {
	verb := "are"
	if len(missing) == 1 {
		verb = "is"
	}
	return "WARNING: field(s) " + strings.Join(missing, ", ") + " " + verb + " missing."
}
