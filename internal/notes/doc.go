// Package notes drafts clinical notes from analysis results, writes them to
// the notes directory, and exports them for download.
//
// Drafting is the second reasoning call of a pass. The returned body is kept
// as free text; only its length is inspected. Export falls back to a note
// synthesized from the stored analysis when no file was ever written.
package notes
