package documentor

import (
	"github.com/akannigil/oxygen-documentor-sub000/internal/certificate"
	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Config is the service configuration.
type Config = config.Config

// LoadConfig reads the named or given config file, applies DOCUMENTOR_*
// environment overrides and validates the result. An empty name uses
// defaults and environment only.
func LoadConfig(nameOrPath string) (*Config, error) {
	return config.Load(nameOrPath)
}

// DefaultConfig returns the single-node defaults.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Domain types.
type (
	Template          = model.Template
	TemplateKind      = model.TemplateKind
	FieldDefinition   = model.FieldDefinition
	FieldFormat       = model.FieldFormat
	Style             = model.Style
	QRCodeConfig      = model.QRCodeConfig
	Row               = model.Row
	OutputFormat      = model.OutputFormat
	ConversionOptions = model.ConversionOptions
	GenerationJob     = model.GenerationJob
	JobState          = model.JobState
	JobStatus         = model.JobStatus
	JobResult         = model.JobResult
	RowError          = model.RowError
	DocumentRecord    = model.DocumentRecord
	EmailJob          = model.EmailJob

	VerificationResult = certificate.VerificationResult
)

// Template kinds.
const (
	KindDOCX  = model.KindDOCX
	KindPDF   = model.KindPDF
	KindImage = model.KindImage
)

// Output formats.
const (
	OutputNative = model.OutputNative
	OutputDOCX   = model.OutputDOCX
	OutputPDF    = model.OutputPDF
)

// Job states.
const (
	JobQueued    = model.JobQueued
	JobActive    = model.JobActive
	JobCompleted = model.JobCompleted
	JobFailed    = model.JobFailed
)

// Document statuses.
const (
	StatusProcessing = model.StatusProcessing
	StatusGenerated  = model.StatusGenerated
	StatusFailed     = model.StatusFailed
	StatusSent       = model.StatusSent
)
