package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Per-image failures. Recorded on the offending report row; the session
	// moves on to the next image.
	ErrIdentifierParse = errors.New("identifier parse error")
	ErrBiopsyNotFound  = errors.New("biopsy not found")
	ErrBarcodeNotFound = errors.New("barcode not found")
	ErrValidation      = errors.New("validation error")

	// Session-fatal failures. No partial cache state can be trusted after
	// one of these; the run aborts.
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrPlatformUnavailable = errors.New("image platform unavailable")
	ErrConfiguration       = errors.New("configuration error")

	// ErrLookupUnavailable covers the supplementary study-lookup store.
	// Non-fatal: the session falls back to the default study label.
	ErrLookupUnavailable = errors.New("study lookup unavailable")
)

// Wrap builds an error message that includes pipeline context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err must abort the whole session rather than a
// single image's processing.
func Fatal(err error) bool {
	return errors.Is(err, ErrRegistryUnavailable) ||
		errors.Is(err, ErrPlatformUnavailable) ||
		errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
