// Package entity defines the canonical data model for the analysis
// backend and the normalization layer that produces it.
//
// # Entities
//
// Document, Conversation, Message, and Query are the four identified
// entity families. Source and AnalysisResult are dependent payloads
// that never stand alone.
//
// # Normalization
//
// The backend returns the same logical entity in several shapes
// depending on endpoint and version:
//
//   - direct: the entity object itself
//   - wrapped: nested under "data" or a kind-named key ("conversation")
//   - listed: the first element of an array
//   - scalar: a bare identity value
//
// Normalizer resolves all four into canonical structs. Identity is
// recovered from "id", "<kind>_id", or "uuid" fields, searching nested
// objects depth first in sorted key order so results are deterministic.
// A payload without any recoverable identity yields *NormalizationError.
//
// List normalization never fails: unrecognizable list payloads become
// empty slices and elements without identity are skipped.
package entity
