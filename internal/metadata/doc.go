// Package metadata defines the value objects shared by the reconciliation
// pipeline: the per-biopsy registry record, the per-slide metadata attached to
// platform images, the image-type classification rules, and the fixed
// disease/stain vocabularies.
//
// BiopsyRecord instances are shared between sibling slides; slides hold a
// non-owning pointer so a study-id backfill on the parent is visible to every
// image of the same biopsy. Diagnostic state (InError, MissingMetadata,
// ErrorMessage) accumulates for the lifetime of a session and is never
// cleared.
package metadata
