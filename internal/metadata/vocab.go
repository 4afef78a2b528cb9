package metadata

import (
	"strconv"
	"strings"
)

// Disease and stain vocabularies are fixed, externally defined code tables
// from the registry's data dictionary. They are initialized once and never
// mutated.

var diseaseLabels = map[int]string{
	1: "MCD",
	2: "MCD + C1q",
	3: "FSGS",
	4: "FSGS + C1q",
	5: "MN",
	6: "IgA",
}

// Stain codes above stainCodeMax are registry "Other - *" entries and all
// collapse to OTH.
const stainCodeMax = 9

var stainCodes = map[int]string{
	1: "HE",
	2: "HEF",
	3: "PAS",
	4: "PASF",
	5: "SIL",
	6: "TOL",
	7: "TRI",
	8: "TRS",
	9: "UNK",
}

const (
	// StainOther is returned for any stain code beyond the enumerated table.
	StainOther = "OTH"
	// StainUnknown is returned for blank or unparseable stain codes.
	StainUnknown = "UNK"
)

// DiseaseLabel maps a registry disease-cohort code to its display label.
// Blank or unrecognized codes yield the empty string so validation records
// the field as missing.
func DiseaseLabel(code string) string {
	n, ok := parseCode(code)
	if !ok {
		return ""
	}
	return diseaseLabels[n]
}

// StainCode maps a registry stain code to its normalized short code.
func StainCode(code string) string {
	n, ok := parseCode(code)
	if !ok {
		return StainUnknown
	}
	if n > stainCodeMax {
		return StainOther
	}
	if label, ok := stainCodes[n]; ok {
		return label
	}
	return StainUnknown
}

func parseCode(code string) (int, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}
