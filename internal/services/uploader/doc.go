// Package uploader implements the supplementary lookup store client. The
// uploader database records which study a submitted package belongs to and
// what kind of package it was; the pipeline consults it by filename to
// backfill study identifiers and to sharpen image-type classification.
package uploader
