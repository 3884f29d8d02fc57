// Package assets provides the print stylesheet used by the browser
// conversion path and the default email body template.
//
// Assets come from the binary (go:embed) unless an override directory is
// configured, in which case files found there win:
//
//	{dir}/
//	├── styles/{name}.css
//	└── templates/{name}.html
//
// Names are plain identifiers. The filesystem loader refuses anything
// that resolves outside its directory, symlinks included.
package assets
