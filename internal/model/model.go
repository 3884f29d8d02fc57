// Package model defines the domain types shared by the generation pipeline:
// templates, QR configurations, jobs, document records and results.
package model

import (
	"strings"
	"time"
)

// TemplateKind identifies how a template is rendered.
type TemplateKind string

const (
	KindDOCX  TemplateKind = "docx"
	KindPDF   TemplateKind = "pdf"
	KindImage TemplateKind = "image"
)

// Structured reports whether the kind is rendered by variable substitution
// rather than by field overlay.
func (k TemplateKind) Structured() bool {
	return k == KindDOCX
}

// Template is a reusable source document plus the metadata describing where
// row data is inserted.
type Template struct {
	ID        string
	ProjectID string
	Name      string
	Kind      TemplateKind
	FileKey   string // storage key of the template file

	// Fields applies to fixed-layout kinds (pdf, image).
	Fields []FieldDefinition
	// Variables lists the names detected in structured kinds.
	Variables []string
	// Formats maps a variable name to its formatting directive (structured kinds).
	Formats map[string]FieldFormat
	// Styles maps a variable name to a run style overlay (structured kinds).
	Styles map[string]Style

	QRCodes []QRCodeConfig
}

// FieldType is the value type of a field.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldDate   FieldType = "date"
	FieldNumber FieldType = "number"
)

// FieldFormat describes how a raw row value is turned into text.
type FieldFormat struct {
	Type   FieldType `json:"type,omitempty"`
	Format string    `json:"format,omitempty"` // "DD/MM/YYYY", "0.00", "uppercase", ...
}

// FieldDefinition positions a variable on a fixed-layout template.
// Coordinates are measured from the top-left corner, in points for PDF
// templates and in pixels for image templates.
type FieldDefinition struct {
	Name     string      `json:"name"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Page     int         `json:"page,omitempty"` // 1-based, PDF only
	FontSize float64     `json:"fontSize,omitempty"`
	Color    string      `json:"color,omitempty"` // #RRGGBB
	Format   FieldFormat `json:"format,omitempty"`
}

// Style is a run-level style overlay for a substituted variable.
type Style struct {
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"` // points
	Color      string  `json:"color,omitempty"`    // #RRGGBB or RRGGBB
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Underline  bool    `json:"underline,omitempty"`
}

// QRContentType tags the semantic of a QR payload.
type QRContentType string

const (
	QRURL    QRContentType = "url"
	QRText   QRContentType = "text"
	QRVCard  QRContentType = "vcard"
	QREmail  QRContentType = "email"
	QRPhone  QRContentType = "phone"
	QRCustom QRContentType = "custom"
)

// QRCodeConfig describes one QR code to place on a template.
type QRCodeConfig struct {
	Placeholder string        `json:"placeholder"`
	ContentType QRContentType `json:"contentType"`
	Pattern     string        `json:"pattern"`

	Width           int    `json:"width,omitempty"`  // pixels, default 200
	Margin          *int   `json:"margin,omitempty"` // modules, default 1
	ErrorCorrection string `json:"errorCorrection,omitempty"`
	Foreground      string `json:"foreground,omitempty"`
	Background      string `json:"background,omitempty"`

	// Required turns a missing placeholder into a row failure.
	Required bool `json:"required,omitempty"`

	// Position on fixed-layout templates.
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	Page int     `json:"page,omitempty"`

	StorageURL *StorageURLDirective `json:"storageUrl,omitempty"`
	Auth       *AuthDirective       `json:"auth,omitempty"`
}

// StorageURLDirective asks for the row's eventual storage URL as QR content.
type StorageURLDirective struct {
	Signed        bool `json:"signed"`
	ExpirySeconds int  `json:"expirySeconds,omitempty"` // default 3600
}

// AuthDirective enables signed certificate payloads.
type AuthDirective struct {
	Enabled       bool              `json:"enabled"`
	VerifyBaseURL string            `json:"verifyBaseUrl,omitempty"`
	Expiry        time.Duration     `json:"expiry,omitempty"`
	FieldMapping  map[string]string `json:"fieldMapping,omitempty"` // certificate attribute -> row column
	Issuer        string            `json:"issuer,omitempty"`       // default issuer when no column maps
	BindDocument  bool              `json:"bindDocument,omitempty"`
	Algorithm     string            `json:"algorithm,omitempty"` // sha256 | sha512

	// MetadataColumns are row columns copied into the payload unsigned.
	MetadataColumns []string `json:"metadataColumns,omitempty"`
}

// Row is one recipient's data.
type Row map[string]any

// Lookup finds a value by exact key, then case-insensitively.
func (r Row) Lookup(name string) (any, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// OutputFormat selects the delivered format of structured templates.
type OutputFormat string

const (
	OutputNative OutputFormat = ""
	OutputDOCX   OutputFormat = "docx"
	OutputPDF    OutputFormat = "pdf"
)

// GenerationJob is a submitted batch.
type GenerationJob struct {
	ID           string             `json:"id"`
	TemplateID   string             `json:"templateId"`
	Rows         []Row              `json:"rows"`
	OutputFormat OutputFormat       `json:"outputFormat,omitempty"`
	Conversion   *ConversionOptions `json:"conversionOptions,omitempty"`
}

// DocumentStatus is the lifecycle state of a DocumentRecord.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusGenerated  DocumentStatus = "generated"
	StatusFailed     DocumentStatus = "failed"
	StatusSent       DocumentStatus = "sent"
)

// DocumentRecord is the persisted outcome of one row.
type DocumentRecord struct {
	ID           string
	JobID        string
	TemplateID   string
	RowIndex     int
	Data         Row
	Status       DocumentStatus
	FilePath     string
	MimeType     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentUpdate carries the mutable fields of a DocumentRecord.
type DocumentUpdate struct {
	Status       DocumentStatus
	FilePath     string
	MimeType     string
	ErrorMessage string
}

// RowError identifies a failed row.
type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}

// JobResult is the aggregate outcome of a job.
type JobResult struct {
	Total       int        `json:"total"`
	DocumentIDs []string   `json:"documentIds"`
	Errors      []RowError `json:"errors"`
}

// Success reports whether no row failed.
func (r *JobResult) Success() bool {
	return r != nil && len(r.Errors) == 0
}

// JobState is the externally visible state of a queued job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobStatus is returned to pollers.
type JobStatus struct {
	ID            string     `json:"id"`
	State         JobState   `json:"state"`
	Progress      int        `json:"progress"`
	Result        *JobResult `json:"result,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
}

// EmailJob asks for a generated document to be delivered.
type EmailJob struct {
	DocumentID     string `json:"documentId"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject,omitempty"`
	HTMLTemplate   string `json:"htmlTemplate,omitempty"`
	AttachDocument bool   `json:"attachDocument,omitempty"`
}

// EmailResult is the outcome of one delivery.
type EmailResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}
