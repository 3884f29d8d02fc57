package store

import (
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

type templateRow struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"index"`
	Name      string
	Kind      string
	FileKey   string

	Fields    []model.FieldDefinition      `gorm:"serializer:json"`
	Variables []string                     `gorm:"serializer:json"`
	Formats   map[string]model.FieldFormat `gorm:"serializer:json"`
	Styles    map[string]model.Style       `gorm:"serializer:json"`
	QRCodes   []model.QRCodeConfig         `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (templateRow) TableName() string {
	return "templates"
}

func newTemplateRow(t *model.Template) *templateRow {
	return &templateRow{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Name:      t.Name,
		Kind:      string(t.Kind),
		FileKey:   t.FileKey,
		Fields:    t.Fields,
		Variables: t.Variables,
		Formats:   t.Formats,
		Styles:    t.Styles,
		QRCodes:   t.QRCodes,
	}
}

func (r *templateRow) toModel() *model.Template {
	return &model.Template{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Kind:      model.TemplateKind(r.Kind),
		FileKey:   r.FileKey,
		Fields:    r.Fields,
		Variables: r.Variables,
		Formats:   r.Formats,
		Styles:    r.Styles,
		QRCodes:   r.QRCodes,
	}
}

type documentRow struct {
	ID           string    `gorm:"primaryKey"`
	JobID        string    `gorm:"index"`
	TemplateID   string    `gorm:"index"`
	RowIndex     int
	Data         model.Row `gorm:"serializer:json"`
	Status       string    `gorm:"index"`
	FilePath     string
	MimeType     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

func (r *documentRow) toModel() *model.DocumentRecord {
	return &model.DocumentRecord{
		ID:           r.ID,
		JobID:        r.JobID,
		TemplateID:   r.TemplateID,
		RowIndex:     r.RowIndex,
		Data:         r.Data,
		Status:       model.DocumentStatus(r.Status),
		FilePath:     r.FilePath,
		MimeType:     r.MimeType,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
