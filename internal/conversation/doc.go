// Package conversation recovers structured chat turns from loosely formatted
// transcript strings.
//
// Upstream datasets store transcripts in whatever shape the exporting tool
// produced: a JSON array of role/content objects, a Python-repr list of dicts
// with single-quoted strings, or freeform text. Parsing runs an ordered list
// of independent strategies and degrades to returning the input verbatim, so
// display paths never fail on a malformed transcript.
package conversation
