package metadata

import "strings"

// Package types reported by the uploader store that pin the classification
// regardless of what the tag looks like.
const (
	PackageTypeSlideCopy          = "Slide Copy"
	PackageTypeElectronMicroscopy = "Electron Microscopy Imaging"
)

// wsiExcludedMarkers are the extension tokens whose presence anywhere in the
// tag rules out a whole-slide image. Matching is substring containment, not a
// file-extension parse; EM exports routinely bury the token mid-tag.
var wsiExcludedMarkers = []string{"jpg", "JPG", "tif", "JPEG"}

// Classify determines the image type from the tag and an optional
// package-type hint from the uploader store. A recognized hint overrides the
// extension heuristic; otherwise a tag free of all excluded markers is a
// whole-slide image and anything else defaults to electron microscopy.
func Classify(tag, packageType string) ImageType {
	switch packageType {
	case PackageTypeSlideCopy:
		return ImageTypeSlideCopy
	case PackageTypeElectronMicroscopy:
		return ImageTypeElectronMicroscopy
	}
	if isWholeSlideTag(tag) {
		return ImageTypeWholeSlide
	}
	return ImageTypeElectronMicroscopy
}

func isWholeSlideTag(tag string) bool {
	for _, marker := range wsiExcludedMarkers {
		if strings.Contains(tag, marker) {
			return false
		}
	}
	return true
}
