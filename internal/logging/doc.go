// Package logging constructs the slog loggers used across the pipeline.
//
// Loggers write human-readable console output by default and JSON when
// requested, fan out to stdout plus an optional log file, and honour the
// configured level. Components accept a *slog.Logger and tolerate nil by
// substituting NopLogger.
package logging
