// Package pipeline builds the HTML document printed by the browser
// conversion path:
//   - docx body to Markdown (docx.ToMarkdown)
//   - Markdown normalization
//   - Markdown to HTML via goldmark with GFM tables
//   - print stylesheet injection
//
// Printing to PDF lives in internal/convert; this package only produces
// markup.
package pipeline
