package metadata

import (
	"strings"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
)

// ParseBiopsyID extracts the biopsy identifier from an image tag of the form
// <site>_<sequence>_<rest>. The identifier is the join key between the image
// platform and the clinical registry, so a tag with fewer than two
// underscore-delimited segments cannot be reconciled at all.
func ParseBiopsyID(tag string) (string, error) {
	parts := strings.Split(tag, "_")
	if len(parts) < 2 {
		return "", services.Wrap(services.ErrIdentifierParse, "metadata", "parse biopsy id",
			"tag "+tag+" has fewer than two segments", nil)
	}
	return parts[0] + "_" + parts[1], nil
}
