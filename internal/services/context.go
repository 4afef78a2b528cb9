package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	imageTagKey contextKey = "image_tag"
)

// WithRunID annotates context with the reconciliation run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithImageTag annotates context with the tag of the image being processed.
func WithImageTag(ctx context.Context, tag string) context.Context {
	if tag == "" {
		return ctx
	}
	return context.WithValue(ctx, imageTagKey, tag)
}

// ImageTagFromContext extracts the image tag if present.
func ImageTagFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(imageTagKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
