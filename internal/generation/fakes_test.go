package generation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
	"github.com/akannigil/oxygen-documentor-sub000/internal/store"
)

// ---------------------------------------------------------------------------
// Mock Store
// ---------------------------------------------------------------------------

type memStore struct {
	mu        sync.Mutex
	templates map[string]*model.Template
	docs      map[string]*model.DocumentRecord
	order     []string
	seq       int
	getErr    error
}

func newMemStore(templates ...*model.Template) *memStore {
	s := &memStore{
		templates: make(map[string]*model.Template),
		docs:      make(map[string]*model.DocumentRecord),
	}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	return s
}

func (s *memStore) CreateDocument(_ context.Context, jobID, templateID string, rowIndex int, data model.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("doc-%d", s.seq)
	s.docs[id] = &model.DocumentRecord{
		ID:         id,
		JobID:      jobID,
		TemplateID: templateID,
		RowIndex:   rowIndex,
		Data:       data,
		Status:     model.StatusProcessing,
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *memStore) UpdateDocument(_ context.Context, id string, u model.DocumentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return errors.New("not found")
	}
	d.Status = u.Status
	if u.FilePath != "" {
		d.FilePath = u.FilePath
	}
	if u.MimeType != "" {
		d.MimeType = u.MimeType
	}
	if u.ErrorMessage != "" {
		d.ErrorMessage = u.ErrorMessage
	}
	return nil
}

func (s *memStore) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, store.ErrRecordNotFound)
	}
	return t, nil
}

func (s *memStore) doc(id string) model.DocumentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.docs[id]
}

func (s *memStore) statuses() []model.DocumentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DocumentStatus, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id].Status)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock Storage
// ---------------------------------------------------------------------------

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *memStorage) Upload(_ context.Context, data []byte, key, _ string) (string, error) {
	m.put(key, data)
	return key, nil
}

func (m *memStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memStorage) URL(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key, nil
}

func (m *memStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example/" + key + "?sig=1", nil
}

// ---------------------------------------------------------------------------
// Mock Converter
// ---------------------------------------------------------------------------

type fakeConverter struct {
	panicOn bool
	calls   int
}

func (c *fakeConverter) Convert(_ context.Context, docx []byte, _ *model.ConversionOptions) ([]byte, error) {
	c.calls++
	if c.panicOn {
		panic("converter exploded")
	}
	if len(docx) == 0 {
		return nil, errors.New("empty input")
	}
	return []byte("%PDF-1.7 fake"), nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[model.DocumentStatus]int
}

func (o *countingObserver) ObserveRow(s model.DocumentStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[model.DocumentStatus]int)
	}
	o.counts[s]++
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const (
	contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`
	docRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
</Relationships>`
)

func paragraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	body := ""
	for _, p := range paragraphs {
		body += p
	}
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<w:body>` + body + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ name, content string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", document},
		{"word/_rels/document.xml.rels", docRels},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
