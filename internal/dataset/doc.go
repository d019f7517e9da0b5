// Package dataset converts uploaded conversation spreadsheets into the
// line-delimited JSON format ingested by the external evaluation service.
//
// A conversion pass reads the first sheet of an .xlsx workbook (or a .csv
// file), tolerates camelCase and snake_case column spellings, drops rows
// without a conversation id, and best-effort translates conversation text to
// the configured target language before serializing each row as an
// {"item": ...} envelope, one JSON object per line.
package dataset
