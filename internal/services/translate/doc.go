// Package translate is a thin client for the external translation API used
// during dataset conversion. Translation is best-effort: the converter falls
// back to the original text whenever a call fails.
package translate
