package metadata

import "strings"

// Defaults applied to every biopsy record; these are fixed values in the
// clinical registry's data dictionary, not configuration.
const (
	DefaultOrgan         = "Kidney"
	DefaultTissueComment = "Biopsy"
	DefaultEventType     = "Enrollment Biopsy Material"
)

// ImageType tags a platform image with its classified kind.
type ImageType int

const (
	ImageTypeUnset ImageType = iota
	ImageTypeWholeSlide
	ImageTypeElectronMicroscopy
	ImageTypeSlideCopy
)

// String returns the wire label written back to the platform's image-type
// field. Unset renders empty so validation counts it as missing.
func (t ImageType) String() string {
	switch t {
	case ImageTypeWholeSlide:
		return "WSImage"
	case ImageTypeElectronMicroscopy:
		return "EMImage"
	case ImageTypeSlideCopy:
		return "SlideCopyImage"
	default:
		return ""
	}
}

// BiopsyRecord holds the registry-side metadata for one clinical biopsy. It
// is created once per biopsy identifier per session and shared by all slides
// of that biopsy.
type BiopsyRecord struct {
	BiopsyID         string
	StudyID          string
	Organ            string
	BiopsyDate       string
	NeptunePatientID string
	CureGNPatientID  string
	Disease          string
	TissueComment    string
	EventType        string

	// Counts the registry claims for this biopsy; used by the slide-count
	// audit commands, never by validation.
	ExpectedSlideCount int
	ExpectedEMCount    int
}

// NewBiopsyRecord returns a record carrying only the identifier and the
// registry's fixed default values.
func NewBiopsyRecord(biopsyID string) *BiopsyRecord {
	return &BiopsyRecord{
		BiopsyID:      biopsyID,
		Organ:         DefaultOrgan,
		TissueComment: DefaultTissueComment,
		EventType:     DefaultEventType,
	}
}

// HasPatientID reports whether at least one of the two alternate patient
// identifier schemes is populated.
func (b *BiopsyRecord) HasPatientID() bool {
	return strings.TrimSpace(b.NeptunePatientID) != "" || strings.TrimSpace(b.CureGNPatientID) != ""
}

// SlideMetadata describes one physical slide belonging to a biopsy, plus the
// mutable diagnostic state accumulated while reconciling an image against it.
type SlideMetadata struct {
	Parent  *BiopsyRecord
	Barcode string
	Level   string
	Stain   string

	ImageType ImageType

	InError         bool
	MissingMetadata bool
	ErrorMessage    string
}

// NewSlide returns slide metadata bound to the shared parent record.
func NewSlide(parent *BiopsyRecord) *SlideMetadata {
	return &SlideMetadata{Parent: parent}
}

// NewOrphanSlide returns a synthetic slide record carrying only the biopsy
// identifier. Used when an image cannot be matched against registry data but
// still needs a report row.
func NewOrphanSlide(biopsyID string) *SlideMetadata {
	return NewSlide(NewBiopsyRecord(biopsyID))
}

// RecordError marks the slide as errored and appends msg to the diagnostic
// history. Messages accumulate; an earlier failure is never overwritten by a
// later one.
func (s *SlideMetadata) RecordError(msg string) {
	s.InError = true
	s.appendMessage(msg)
}

// RecordMissing flags incomplete metadata and appends the warning text.
// The InError flag is left untouched.
func (s *SlideMetadata) RecordMissing(msg string) {
	s.MissingMetadata = true
	s.appendMessage(msg)
}

func (s *SlideMetadata) appendMessage(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if s.ErrorMessage == "" {
		s.ErrorMessage = msg
		return
	}
	s.ErrorMessage += " " + msg
}
