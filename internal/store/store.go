// Package store persists templates and per-row document records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	ErrInvalidStatus  = errors.New("invalid document status")
)

// Store is the persistence collaborator of the generation pipeline.
type Store interface {
	CreateDocument(ctx context.Context, jobID, templateID string, rowIndex int, data model.Row) (string, error)
	UpdateDocument(ctx context.Context, id string, u model.DocumentUpdate) error
	GetDocument(ctx context.Context, id string) (*model.DocumentRecord, error)
	ListDocuments(ctx context.Context, jobID string) ([]model.DocumentRecord, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	SaveTemplate(ctx context.Context, t *model.Template) error
}

// DataStore implements Store on a gorm connection.
type DataStore struct {
	db    *gorm.DB
	newID func() string
}

var _ Store = (*DataStore)(nil)

// NewStore wraps an initialized connection.
func NewStore(db *gorm.DB) *DataStore {
	return &DataStore{db: db, newID: uuid.NewString}
}

// CreateDocument inserts a record in the processing state and returns its id.
func (s *DataStore) CreateDocument(ctx context.Context, jobID, templateID string, rowIndex int, data model.Row) (string, error) {
	row := &documentRow{
		ID:         s.newID(),
		JobID:      jobID,
		TemplateID: templateID,
		RowIndex:   rowIndex,
		Data:       data,
		Status:     string(model.StatusProcessing),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", translate("creating document", err)
	}
	return row.ID, nil
}

// UpdateDocument writes the non-empty fields of u.
func (s *DataStore) UpdateDocument(ctx context.Context, id string, u model.DocumentUpdate) error {
	if !validStatus(u.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}
	updates := map[string]any{"status": string(u.Status)}
	if u.FilePath != "" {
		updates["file_path"] = u.FilePath
	}
	if u.MimeType != "" {
		updates["mime_type"] = u.MimeType
	}
	if u.ErrorMessage != "" {
		updates["error_message"] = u.ErrorMessage
	}

	result := s.db.WithContext(ctx).Model(&documentRow{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return translate("updating document", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, ErrRecordNotFound)
	}
	return nil
}

// GetDocument loads one record.
func (s *DataStore) GetDocument(ctx context.Context, id string) (*model.DocumentRecord, error) {
	var row documentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate("querying document", err)
	}
	return row.toModel(), nil
}

// ListDocuments returns a job's records ordered by row index.
func (s *DataStore) ListDocuments(ctx context.Context, jobID string) ([]model.DocumentRecord, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("row_index").Find(&rows).Error; err != nil {
		return nil, translate("listing documents", err)
	}
	out := make([]model.DocumentRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

// GetTemplate loads a template.
func (s *DataStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	var row templateRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate("querying template", err)
	}
	return row.toModel(), nil
}

// SaveTemplate inserts or replaces a template. An empty ID is assigned.
func (s *DataStore) SaveTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = s.newID()
	}
	if err := s.db.WithContext(ctx).Save(newTemplateRow(t)).Error; err != nil {
		return translate("saving template", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func validStatus(s model.DocumentStatus) bool {
	switch s {
	case model.StatusProcessing, model.StatusGenerated, model.StatusFailed, model.StatusSent:
		return true
	}
	return false
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrRecordNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
