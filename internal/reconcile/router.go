package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/metadata"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
)

// Decision is the terminal routing state for one processed image.
type Decision int

const (
	DecisionUnprocessed Decision = iota
	DecisionSkipAlreadyAnnotated
	DecisionSkipNotFound
	DecisionRouteIntermediate
	DecisionRouteFinal
)

// String renders the decision for report rows.
func (d Decision) String() string {
	switch d {
	case DecisionSkipAlreadyAnnotated:
		return "skip-already-annotated"
	case DecisionSkipNotFound:
		return "skip-not-found"
	case DecisionRouteIntermediate:
		return "route-intermediate"
	case DecisionRouteFinal:
		return "route-final"
	default:
		return "unprocessed"
	}
}

// Areas names the fixed escrow destinations in the image platform.
type Areas struct {
	IntermediatePK    int64
	IntermediateLabel string
	FinalPK           int64
	FinalLabel        string
}

// Outcome is the result of reconciling a single image.
type Outcome struct {
	ImageTag string
	ImageID  string
	ImagePK  int64
	BiopsyID string
	Slide    *metadata.SlideMetadata
	Decision Decision
	Action   string
}

// router drives the per-image decision state machine. It shares the
// session's resolver so sibling images reuse cached biopsy state.
type router struct {
	platform     ImagePlatform
	lookup       StudyLookup
	resolver     *Resolver
	areas        Areas
	defaultStudy string
	dryRun       bool
	logger       *slog.Logger
}

// process runs one image through classification, resolution, validation, and
// routing. Per-image failures are folded into the returned outcome; a non-nil
// error is session-fatal.
func (rt *router) process(ctx context.Context, img halolink.Image, sourcePK int64) (Outcome, error) {
	outcome := Outcome{ImageTag: img.Tag, ImageID: img.ID, ImagePK: img.PK}

	// The identifier is parsed up front so even skipped rows carry it when
	// the tag allows.
	biopsyID, parseErr := metadata.ParseBiopsyID(img.Tag)
	if parseErr == nil {
		outcome.BiopsyID = biopsyID
	}

	// Pre-existing annotation short-circuits everything, including the
	// registry fetch.
	if img.HasPopulatedField(halolink.FieldDisease.Label()) {
		slide := metadata.NewOrphanSlide(outcome.BiopsyID)
		slide.RecordError("WARNING: Metadata already exists.")
		outcome.Slide = slide
		outcome.Decision = DecisionSkipAlreadyAnnotated
		return outcome, nil
	}

	if parseErr != nil {
		slide := metadata.NewOrphanSlide("")
		slide.RecordError("WARNING: Cannot parse biopsy ID from tag " + img.Tag + ".")
		outcome.Slide = slide
		outcome.Decision = DecisionSkipNotFound
		return outcome, nil
	}

	record, _, err := rt.resolver.Resolve(ctx, biopsyID)
	if err != nil {
		if errors.Is(err, services.ErrBiopsyNotFound) {
			slide := metadata.NewOrphanSlide(biopsyID)
			slide.RecordError("WARNING: Biopsy ID " + biopsyID + " not found.")
			outcome.Slide = slide
			outcome.Decision = DecisionSkipNotFound
			return outcome, nil
		}
		return outcome, err
	}

	packageType := rt.consultLookup(ctx, record, img.Tag)
	imageType := metadata.Classify(img.Tag, packageType)

	slide, incomplete := rt.resolveForType(ctx, imageType, record, biopsyID, img)
	outcome.Slide = slide

	if incomplete {
		outcome.Decision = DecisionRouteIntermediate
	} else {
		outcome.Decision = DecisionRouteFinal
	}
	return outcome, rt.apply(ctx, &outcome, sourcePK)
}

// consultLookup fetches the uploader store's package record for the image.
// The package-type hint is filename-keyed, so it is retrieved for every
// image; the study label only backfills a parent that does not carry one
// yet, with a miss or lookup outage falling back to the caller-supplied
// default. The study mutation is visible to every sibling slide.
func (rt *router) consultLookup(ctx context.Context, record *metadata.BiopsyRecord, fileName string) string {
	var study, packageType string
	if rt.lookup != nil {
		cls, found, err := rt.lookup.ClassificationByFilename(ctx, fileName)
		if err != nil {
			rt.logger.Warn("study lookup unavailable, using default study",
				"file", fileName, "error", err)
		} else if found {
			study = cls.Study
			packageType = cls.PackageType
		}
	}
	if record.StudyID == "" {
		if study == "" {
			study = rt.defaultStudy
		}
		record.StudyID = study
	}
	return packageType
}

func (rt *router) resolveForType(ctx context.Context, imageType metadata.ImageType, record *metadata.BiopsyRecord, biopsyID string, img halolink.Image) (*metadata.SlideMetadata, bool) {
	if imageType != metadata.ImageTypeWholeSlide {
		// Non-WSI images carry the parent metadata directly; no barcode
		// matching applies.
		slide := metadata.NewSlide(record)
		slide.ImageType = imageType
		complete, _ := Validate(slide)
		return slide, !complete
	}

	if img.Barcode == "" {
		slide := metadata.NewOrphanSlide(biopsyID)
		slide.RecordError("WARNING: Barcode is blank.")
		return slide, true
	}

	slide, err := rt.resolver.ResolveSlide(ctx, biopsyID, img.Barcode)
	if err != nil {
		// Biopsy is known here, so the only expected failure is an
		// unmatched barcode: fall back to parent-only metadata.
		slide = metadata.NewSlide(record)
		slide.ImageType = metadata.ImageTypeWholeSlide
		slide.RecordError("WARNING: Barcode " + img.Barcode + " not found for biopsy " + biopsyID + ".")
		return slide, true
	}

	slide.ImageType = metadata.ImageTypeWholeSlide
	complete, _ := Validate(slide)
	return slide, !complete
}

// apply performs the attach/move side effects for routing decisions and
// stamps the outcome's action text. In dry-run mode the action is computed
// and labeled but no platform call is issued.
func (rt *router) apply(ctx context.Context, outcome *Outcome, sourcePK int64) error {
	var destPK int64
	var text string
	move := true

	switch outcome.Decision {
	case DecisionRouteFinal:
		destPK = rt.areas.FinalPK
		text = "Attached available metadata and moved to " + rt.areas.FinalLabel
	case DecisionRouteIntermediate:
		destPK = rt.areas.IntermediatePK
		if sourcePK == rt.areas.IntermediatePK {
			move = false
			text = "Attached available metadata"
		} else {
			text = "Attached available metadata and moved to " + rt.areas.IntermediateLabel
		}
	default:
		return nil
	}

	if rt.dryRun {
		outcome.Action = "DRY RUN ACTION: " + text
		return nil
	}
	outcome.Action = "ACTION: " + text

	if err := rt.platform.UpdateFields(ctx, outcome.ImagePK, fieldUpdates(outcome.Slide)); err != nil {
		return err
	}
	if move {
		if err := rt.platform.MoveImage(ctx, outcome.ImagePK, sourcePK, destPK); err != nil {
			return err
		}
	}
	return nil
}

// fieldUpdates assembles the attach payload in the platform's field order.
func fieldUpdates(slide *metadata.SlideMetadata) []halolink.FieldUpdate {
	parent := slide.Parent
	return []halolink.FieldUpdate{
		{Field: halolink.FieldStudyID, Value: parent.StudyID},
		{Field: halolink.FieldDisease, Value: parent.Disease},
		{Field: halolink.FieldImageType, Value: slide.ImageType.String()},
		{Field: halolink.FieldNeptunePatientStudyID, Value: parent.NeptunePatientID},
		{Field: halolink.FieldCureGNPatientStudyID, Value: parent.CureGNPatientID},
		{Field: halolink.FieldOrgan, Value: parent.Organ},
		{Field: halolink.FieldTissueComment, Value: parent.TissueComment},
		{Field: halolink.FieldEventType, Value: parent.EventType},
		{Field: halolink.FieldLevel, Value: slide.Level},
		{Field: halolink.FieldBiopsyDate, Value: parent.BiopsyDate},
		{Field: halolink.FieldBiopsyID, Value: parent.BiopsyID},
	}
}
