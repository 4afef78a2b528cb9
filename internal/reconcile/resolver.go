package reconcile

import (
	"context"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/metadata"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
)

type biopsyEntry struct {
	found  bool
	record *metadata.BiopsyRecord
	slides []*metadata.SlideMetadata
}

// Resolver memoizes registry lookups for the lifetime of one session. Each
// biopsy identifier is fetched at most once; negative results are cached too,
// so a biopsy the registry does not know costs a single round trip no matter
// how many images reference it.
//
// The resolver is owned by exactly one session and is not safe for
// concurrent use.
type Resolver struct {
	registry Registry
	cache    map[string]*biopsyEntry
	fetches  int
}

// NewResolver returns an empty session-scoped resolver.
func NewResolver(registry Registry) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    make(map[string]*biopsyEntry),
	}
}

// Fetches reports how many registry round trips the resolver has issued.
func (r *Resolver) Fetches() int {
	return r.fetches
}

// Resolve returns the biopsy record and its slide list, fetching from the
// registry on first reference. A biopsy the registry has no record for yields
// ErrBiopsyNotFound; transport failures propagate unfiltered and nothing is
// cached for them.
func (r *Resolver) Resolve(ctx context.Context, biopsyID string) (*metadata.BiopsyRecord, []*metadata.SlideMetadata, error) {
	entry, err := r.entryFor(ctx, biopsyID)
	if err != nil {
		return nil, nil, err
	}
	if !entry.found {
		return nil, nil, services.Wrap(services.ErrBiopsyNotFound, "resolver", "resolve",
			"no registry record for biopsy "+biopsyID, nil)
	}
	return entry.record, entry.slides, nil
}

// ResolveSlide finds the cached slide with an exact barcode match.
// ErrBarcodeNotFound means the biopsy is known but the barcode is not, which
// callers treat differently from a missing biopsy.
func (r *Resolver) ResolveSlide(ctx context.Context, biopsyID, barcode string) (*metadata.SlideMetadata, error) {
	entry, err := r.entryFor(ctx, biopsyID)
	if err != nil {
		return nil, err
	}
	if !entry.found {
		return nil, services.Wrap(services.ErrBiopsyNotFound, "resolver", "resolve slide",
			"no registry record for biopsy "+biopsyID, nil)
	}
	for _, slide := range entry.slides {
		if slide.Barcode == barcode {
			return slide, nil
		}
	}
	return nil, services.Wrap(services.ErrBarcodeNotFound, "resolver", "resolve slide",
		"barcode "+barcode+" not in biopsy "+biopsyID, nil)
}

func (r *Resolver) entryFor(ctx context.Context, biopsyID string) (*biopsyEntry, error) {
	if entry, ok := r.cache[biopsyID]; ok {
		return entry, nil
	}

	records, err := r.registry.RecordsByBiopsyID(ctx, biopsyID)
	if err != nil {
		return nil, err
	}
	r.fetches++

	entry := &biopsyEntry{}
	if len(records) > 0 {
		entry.found = true
		entry.record, entry.slides = buildBiopsy(biopsyID, records[0])
	}
	r.cache[biopsyID] = entry
	return entry, nil
}

// buildBiopsy converts one flat registry row into the shared parent record
// plus one slide per reported barcode. A blank barcode count produces zero
// slides.
func buildBiopsy(biopsyID string, rec redcap.Record) (*metadata.BiopsyRecord, []*metadata.SlideMetadata) {
	record := metadata.NewBiopsyRecord(biopsyID)
	record.CureGNPatientID = rec.Str(redcap.FieldSubjectID)
	record.NeptunePatientID = rec.Str(redcap.FieldNeptuneStudyID)
	record.Disease = metadata.DiseaseLabel(rec.Str(redcap.FieldDiseaseCohort))
	record.BiopsyDate = rec.Str(redcap.FieldBiopsyDate)
	record.ExpectedSlideCount = rec.Int(redcap.FieldBarcodeCount)
	record.ExpectedEMCount = rec.Int(redcap.FieldEMCount)

	slides := make([]*metadata.SlideMetadata, 0, record.ExpectedSlideCount)
	for i := 1; i <= record.ExpectedSlideCount && i <= redcap.MaxSlides; i++ {
		slide := metadata.NewSlide(record)
		slide.Level = rec.SlideLevel(i)
		slide.Barcode = rec.SlideBarcode(i)
		slide.Stain = metadata.StainCode(rec.SlideStain(i))
		slides = append(slides, slide)
	}
	return record, slides
}
