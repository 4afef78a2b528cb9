// Package reconcile implements the metadata reconciliation and routing
// engine: it joins platform images to clinical-registry biopsies via the
// identifier parsed from each image tag, classifies the image, validates the
// resolved metadata for completeness, and decides whether to attach derived
// fields and relocate the image to an escrow area.
//
// A Session owns the per-biopsy cache for exactly one run. The registry is
// consulted at most once per biopsy identifier; every image of the same
// biopsy shares the cached parent record, so a study-id backfill performed
// while processing one image is visible to its siblings. Per-image failures
// are folded into the run report; only transport-level registry or platform
// failures abort a session.
package reconcile
