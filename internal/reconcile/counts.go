package reconcile

import (
	"context"
	"strings"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
)

// CountComparison is the result of auditing one biopsy's slide counts
// between the platform and the registry.
type CountComparison struct {
	BiopsyID      string
	PlatformCount int
	RegistryCount int
}

// Match reports whether both sources agree.
func (c CountComparison) Match() bool {
	return c.PlatformCount == c.RegistryCount
}

// CompareSlideCounts counts the biopsy's images in the given platform
// collection and compares against the registry's reported barcode count.
func CompareSlideCounts(ctx context.Context, ports Ports, studyPK int64, biopsyID string) (CountComparison, error) {
	return compareCounts(ctx, ports, studyPK, biopsyID, false)
}

// CompareEMSlideCounts is the electron-microscopy variant, comparing against
// the registry's EM count.
func CompareEMSlideCounts(ctx context.Context, ports Ports, studyPK int64, biopsyID string) (CountComparison, error) {
	return compareCounts(ctx, ports, studyPK, biopsyID, true)
}

func compareCounts(ctx context.Context, ports Ports, studyPK int64, biopsyID string, em bool) (CountComparison, error) {
	cmp := CountComparison{BiopsyID: biopsyID}

	images, err := ports.Platform.ImagesInStudy(ctx, studyPK)
	if err != nil {
		return cmp, err
	}
	for _, img := range images {
		if strings.Contains(img.Tag, biopsyID+"_") {
			cmp.PlatformCount++
		}
	}

	records, err := ports.Registry.RecordsByBiopsyID(ctx, biopsyID)
	if err != nil {
		return cmp, err
	}
	if len(records) == 0 {
		return cmp, services.Wrap(services.ErrBiopsyNotFound, "counts", "compare",
			"no registry record for biopsy "+biopsyID, nil)
	}
	if em {
		cmp.RegistryCount = records[0].Int(redcap.FieldEMCount)
	} else {
		cmp.RegistryCount = records[0].Int(redcap.FieldBarcodeCount)
	}
	return cmp, nil
}
