// Package docx renders WordprocessingML templates.
//
// Every pass takes an *Archive and returns a new one; the input is never
// modified. Passes are meant to run in this order:
//
//	Substitute -> Repair -> NormalizeSpacing -> ApplyStyles -> InsertImage
//
// Substitute works on the raw XML text so it can never fail on a malformed
// part. The tree passes that follow are best-effort: when a part cannot be
// parsed it is left untouched and the error is reported alongside the
// archive.
package docx
