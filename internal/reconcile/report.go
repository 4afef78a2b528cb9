package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// Report aggregates the outcomes of one run. The CSV rendering is the
// system's primary human-facing output; its column order is fixed because
// downstream tooling keys on it, and it contains no timestamps or run
// identifiers so repeated dry runs over unchanged inputs render
// byte-identically.
type Report struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	SourceStudyPK int64
	DefaultStudy  string
	DryRun        bool
	Outcomes      []Outcome
}

// reportColumns is the fixed header, in report order.
var reportColumns = []string{
	"image_tag",
	"biopsy_id",
	"study_id",
	"organ",
	"image_type",
	"biopsy_date",
	"npt_patient_study_id",
	"cgn_patient_study_id",
	"disease",
	"tissue_comment",
	"event_type",
	"level",
	"barcode",
	"stain",
	"decision",
	"action",
	"error_message",
}

// Header returns the report's column names.
func (r *Report) Header() []string {
	header := make([]string, len(reportColumns))
	copy(header, reportColumns)
	return header
}

// Row renders one outcome as literal field values; empty fields stay empty.
func (r *Report) Row(o Outcome) []string {
	slide := o.Slide
	parent := slide.Parent
	return []string{
		o.ImageTag,
		parent.BiopsyID,
		parent.StudyID,
		parent.Organ,
		slide.ImageType.String(),
		parent.BiopsyDate,
		parent.NeptunePatientID,
		parent.CureGNPatientID,
		parent.Disease,
		parent.TissueComment,
		parent.EventType,
		slide.Level,
		slide.Barcode,
		slide.Stain,
		o.Decision.String(),
		o.Action,
		slide.ErrorMessage,
	}
}

// Rows renders every outcome in processing order.
func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		rows = append(rows, r.Row(o))
	}
	return rows
}

// WriteCSV emits the header, one row per image, and the trailing processed
// count. Values containing commas are quoted by the CSV encoding.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Header()); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, o := range r.Outcomes {
		if err := cw.Write(r.Row(o)); err != nil {
			return fmt.Errorf("write report row for %s: %w", o.ImageTag, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	if _, err := fmt.Fprintf(w, "Processed %d images.\n", len(r.Outcomes)); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}
	return nil
}
