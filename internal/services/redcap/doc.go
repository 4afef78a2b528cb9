// Package redcap implements the clinical-registry client. Records are
// exported through REDCap's flat JSON API filtered by biopsy identifier.
//
// The client rate-limits outbound requests and routes them through a circuit
// breaker; once the breaker opens, further calls fail fast with the
// registry-unavailable marker, which aborts the reconciliation session rather
// than producing rows based on partial registry state.
package redcap
