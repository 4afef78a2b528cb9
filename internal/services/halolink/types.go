package halolink

import "strings"

// FieldValue is an existing structured field on a listed image.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Image is one entry of a study's image listing.
type Image struct {
	PK          int64        `json:"pk"`
	ID          string       `json:"id"`
	Location    string       `json:"location"`
	Tag         string       `json:"tag"`
	Stain       string       `json:"stain"`
	Barcode     string       `json:"barcode"`
	FieldValues []FieldValue `json:"fieldValues"`
}

// HasPopulatedField reports whether any existing field whose display name
// contains name carries a non-empty value.
func (i Image) HasPopulatedField(name string) bool {
	if name == "" {
		return false
	}
	for _, fv := range i.FieldValues {
		if fv.Value != "" && strings.Contains(fv.Name, name) {
			return true
		}
	}
	return false
}
