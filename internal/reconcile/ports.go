package reconcile

import (
	"context"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/uploader"
)

// ImagePlatform is the slice of the image-management platform the engine
// consumes.
type ImagePlatform interface {
	ImagesInStudy(ctx context.Context, studyPK int64) ([]halolink.Image, error)
	UpdateFields(ctx context.Context, imagePK int64, updates []halolink.FieldUpdate) error
	MoveImage(ctx context.Context, imagePK, fromStudyPK, toStudyPK int64) error
}

// Registry is the clinical-registry lookup the resolver consumes.
type Registry interface {
	RecordsByBiopsyID(ctx context.Context, biopsyID string) ([]redcap.Record, error)
}

// StudyLookup is the supplementary store consulted to backfill study
// identifiers by filename.
type StudyLookup interface {
	ClassificationByFilename(ctx context.Context, fileName string) (uploader.Classification, bool, error)
}

// Ports bundles the external collaborators a session needs.
type Ports struct {
	Platform ImagePlatform
	Registry Registry
	Lookup   StudyLookup
}
