// Package generation drives a GenerationJob through the per-row procedure:
// record, render, optionally convert, upload, and account for the outcome.
//
// Rows run sequentially in submission order. A failing row is recorded in
// the job result and the next row proceeds; only errors that make every row
// impossible, such as an unreadable template, fail the job itself.
package generation
