package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()
	db, err := InitDB(DriverSQLite, filepath.Join(t.TempDir(), "documentor.db"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateDocument(ctx, "job-1", "tpl-1", 0, model.Row{"name": "Jane"})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Status != model.StatusProcessing {
		t.Errorf("Status = %q, want processing", doc.Status)
	}
	if doc.Data["name"] != "Jane" {
		t.Errorf("Data = %v", doc.Data)
	}

	err = s.UpdateDocument(ctx, id, model.DocumentUpdate{
		Status:   model.StatusGenerated,
		FilePath: "documents/job-1/tpl-1/0000-x.pdf",
		MimeType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if err := s.UpdateDocument(ctx, id, model.DocumentUpdate{Status: model.StatusSent}); err != nil {
		t.Fatalf("UpdateDocument(sent) error = %v", err)
	}

	doc, err = s.GetDocument(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != model.StatusSent {
		t.Errorf("Status = %q, want sent", doc.Status)
	}
	if doc.FilePath != "documents/job-1/tpl-1/0000-x.pdf" || doc.MimeType != "application/pdf" {
		t.Errorf("file fields lost: %+v", doc)
	}
}

func TestUpdateDocument_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpdateDocument(ctx, "missing", model.DocumentUpdate{Status: model.StatusFailed}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("missing id error = %v, want ErrRecordNotFound", err)
	}
	if err := s.UpdateDocument(ctx, "any", model.DocumentUpdate{Status: "bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status error = %v, want ErrInvalidStatus", err)
	}
}

func TestListDocuments_OrderedByRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	for _, i := range []int{2, 0, 1} {
		if _, err := s.CreateDocument(ctx, "job", "tpl", i, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateDocument(ctx, "other", "tpl", 0, nil); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListDocuments(ctx, "job")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len = %d, want 3", len(docs))
	}
	for i, d := range docs {
		if d.RowIndex != i {
			t.Errorf("docs[%d].RowIndex = %d", i, d.RowIndex)
		}
	}
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

func TestTemplateRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	margin := 2

	in := &model.Template{
		Name:      "Certificate",
		Kind:      model.KindDOCX,
		FileKey:   "templates/cert.docx",
		Variables: []string{"name", "date"},
		Formats:   map[string]model.FieldFormat{"date": {Type: model.FieldDate, Format: "DD/MM/YYYY"}},
		QRCodes: []model.QRCodeConfig{{
			Placeholder: "{{qr}}",
			ContentType: model.QRURL,
			Pattern:     "https://verify.example/{{id}}",
			Margin:      &margin,
		}},
	}
	if err := s.SaveTemplate(ctx, in); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	if in.ID == "" {
		t.Fatal("SaveTemplate() did not assign an ID")
	}

	got, err := s.GetTemplate(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if got.Kind != model.KindDOCX || got.FileKey != in.FileKey {
		t.Errorf("GetTemplate() = %+v", got)
	}
	if len(got.QRCodes) != 1 || got.QRCodes[0].Margin == nil || *got.QRCodes[0].Margin != 2 {
		t.Errorf("QRCodes = %+v", got.QRCodes)
	}
	if got.Formats["date"].Format != "DD/MM/YYYY" {
		t.Errorf("Formats = %+v", got.Formats)
	}

	if _, err := s.GetTemplate(ctx, "nope"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("GetTemplate(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestInitDB_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := InitDB("oracle", "", nil); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("InitDB() error = %v, want ErrUnsupportedDriver", err)
	}
}
