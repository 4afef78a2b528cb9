package redcap

import (
	"strconv"
	"strings"
)

// Registry field names for the biopsy export. slidelevelN/slidestainN/
// slidebarcodeN are requested for slide numbers 1..MaxSlides.
const (
	FieldBiopsyID       = "biopsyid"
	FieldSubjectID      = "subjectid"
	FieldDiseaseCohort  = "pathdiseasecohort"
	FieldBiopsyDate     = "renalbxdate"
	FieldEMCount        = "numems_qc"
	FieldBarcodeCount   = "numbarcodes"
	FieldNeptuneStudyID = "neptune_studyid_screen"
)

// MaxSlides is the largest per-slide field index the registry defines.
const MaxSlides = 20

// DefaultFieldList enumerates every field requested from the registry, in a
// stable order.
func DefaultFieldList() []string {
	fields := []string{
		FieldSubjectID,
		FieldDiseaseCohort,
		FieldBiopsyDate,
		FieldEMCount,
		FieldBarcodeCount,
		FieldNeptuneStudyID,
	}
	for i := 1; i <= MaxSlides; i++ {
		fields = append(fields, "slidelevel"+strconv.Itoa(i))
	}
	for i := 1; i <= MaxSlides; i++ {
		fields = append(fields, "slidestain"+strconv.Itoa(i))
	}
	for i := 1; i <= MaxSlides; i++ {
		fields = append(fields, "slidebarcode"+strconv.Itoa(i))
	}
	return fields
}

// Record is one flat registry row. All values are exposed as strings; blank
// and absent fields are equivalent.
type Record map[string]string

// Str returns the trimmed value for field, or empty when absent.
func (r Record) Str(field string) string {
	return strings.TrimSpace(r[field])
}

// Int parses the named field as an integer, treating blanks and junk as zero.
func (r Record) Int(field string) int {
	v := r.Str(field)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// SlideLevel returns the level of slide number n (1-based).
func (r Record) SlideLevel(n int) string {
	return r.Str("slidelevel" + strconv.Itoa(n))
}

// SlideStain returns the raw stain code of slide number n (1-based).
func (r Record) SlideStain(n int) string {
	return r.Str("slidestain" + strconv.Itoa(n))
}

// SlideBarcode returns the barcode of slide number n (1-based).
func (r Record) SlideBarcode(n int) string {
	return r.Str("slidebarcode" + strconv.Itoa(n))
}
