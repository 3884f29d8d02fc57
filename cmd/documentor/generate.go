package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	documentor "github.com/akannigil/oxygen-documentor-sub000"
	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/fileutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
)

// ErrRowsFailed is returned when at least one row did not produce a document.
var ErrRowsFailed = errors.New("some rows failed")

const defaultOutputDir = "out"

// templateMeta is the optional metadata file of the generate command.
type templateMeta struct {
	Name      string                            `yaml:"name"`
	Variables []string                          `yaml:"variables"`
	Fields    []documentor.FieldDefinition      `yaml:"fields"`
	Formats   map[string]documentor.FieldFormat `yaml:"formats"`
	Styles    map[string]documentor.Style       `yaml:"styles"`
	QRCodes   []documentor.QRCodeConfig         `yaml:"qrCodes"`
	Options   *documentor.ConversionOptions     `yaml:"conversion"`
}

type generateFlags struct {
	common   commonFlags
	template string
	meta     string
	rows     string
	output   string
	format   string
}

func runGenerate(ctx context.Context, args []string, env *Environment) error {
	fs := newFlagSet("generate", env)
	fs.Usage = func() { printGenerateUsage(env.Stderr) }
	var f generateFlags
	addCommonFlags(fs, &f.common)
	fs.StringVarP(&f.template, "template", "t", "", "Template file")
	fs.StringVarP(&f.meta, "meta", "m", "", "Template metadata file")
	fs.StringVarP(&f.rows, "rows", "r", "", "Rows JSON file")
	fs.StringVarP(&f.output, "output", "o", defaultOutputDir, "Output directory")
	fs.StringVarP(&f.format, "format", "f", "", "Output format: docx, pdf")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if f.template == "" || f.rows == "" {
		return fmt.Errorf("%w: --template and --rows are required", ErrUsage)
	}

	kind, err := kindFromPath(f.template)
	if err != nil {
		return err
	}
	output, err := parseOutputFormat(f.format)
	if err != nil {
		return err
	}

	file, err := os.ReadFile(f.template) // #nosec G304 -- user-provided path
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	rows, err := readRows(f.rows)
	if err != nil {
		return err
	}
	meta, err := readMeta(f.meta)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(f.common)
	if err != nil {
		return err
	}
	if kind == documentor.KindDOCX && output == documentor.OutputPDF &&
		cfg.Converter.DisableOffice && cfg.Converter.DisableBrowser {
		return fmt.Errorf("%w: both converters are disabled", generation.ErrConverterRequired)
	}

	workDir, cleanup, err := fileutil.TempDir("generate")
	if err != nil {
		return err
	}
	defer cleanup()
	isolate(cfg, workDir)

	logger, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := documentor.New(ctx, cfg, documentor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("closing service", zap.Error(err))
		}
	}()

	tpl := &documentor.Template{
		Name:      meta.Name,
		Kind:      kind,
		Variables: meta.Variables,
		Fields:    meta.Fields,
		Formats:   meta.Formats,
		Styles:    meta.Styles,
		QRCodes:   meta.QRCodes,
	}
	if tpl.Name == "" {
		tpl.Name = strings.TrimSuffix(filepath.Base(f.template), filepath.Ext(f.template))
	}
	if err := svc.RegisterTemplate(ctx, tpl, filepath.Base(f.template), file); err != nil {
		return err
	}

	id, err := svc.Submit(ctx, documentor.GenerationJob{
		TemplateID:   tpl.ID,
		Rows:         rows,
		OutputFormat: output,
		Conversion:   meta.Options,
	})
	if err != nil {
		return err
	}
	status, err := svc.Status(ctx, id)
	if err != nil {
		return err
	}
	if status.State == documentor.JobFailed || status.Result == nil {
		return fmt.Errorf("job %s failed: %s", id, status.FailureReason)
	}

	written, err := exportDocuments(ctx, svc, id, f.output)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%d of %d documents written to %s\n", written, len(rows), f.output)
	for _, re := range status.Result.Errors {
		fmt.Fprintf(env.Stderr, "row %d: %s\n", re.RowIndex, re.Message)
	}
	if !status.Result.Success() {
		return fmt.Errorf("%w: %d of %d", ErrRowsFailed, len(status.Result.Errors), len(rows))
	}
	return nil
}

// isolate points the database and the storage at workDir and runs jobs
// inline, so a one-shot generation never touches shared state.
func isolate(cfg *config.Config, workDir string) {
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(workDir, "documentor.db")
	cfg.Queue.Disabled = true
	cfg.Storage.Backend = storage.BackendFilesystem
	cfg.Storage.Root = filepath.Join(workDir, "objects")
}

// exportDocuments copies every generated document of job into dir and
// returns the number of files written.
func exportDocuments(ctx context.Context, svc *documentor.Service, jobID, dir string) (int, error) {
	docs, err := svc.Documents(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	n := 0
	for _, d := range docs {
		if d.FilePath == "" || d.Status == documentor.StatusFailed {
			continue
		}
		data, err := svc.Storage().Get(ctx, d.FilePath)
		if err != nil {
			return n, fmt.Errorf("reading document %s: %w", d.ID, err)
		}
		name := fmt.Sprintf("%04d%s", d.RowIndex, path.Ext(d.FilePath))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return n, fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		n++
	}
	return n, nil
}

func kindFromPath(p string) (documentor.TemplateKind, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".docx":
		return documentor.KindDOCX, nil
	case ".pdf":
		return documentor.KindPDF, nil
	case ".png", ".jpg", ".jpeg":
		return documentor.KindImage, nil
	default:
		return "", fmt.Errorf("%w: unsupported template type %q", ErrUsage, filepath.Ext(p))
	}
}

func parseOutputFormat(s string) (documentor.OutputFormat, error) {
	switch strings.ToLower(s) {
	case "":
		return documentor.OutputNative, nil
	case "docx":
		return documentor.OutputDOCX, nil
	case "pdf":
		return documentor.OutputPDF, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", ErrUsage, s)
	}
}

func readRows(p string) ([]documentor.Row, error) {
	data, err := os.ReadFile(p) // #nosec G304 -- user-provided path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	var rows []documentor.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: rows must be a JSON array of objects: %v", ErrUsage, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows in %s", ErrUsage, p)
	}
	return rows, nil
}

// readMeta decodes the metadata file. JSON is accepted as YAML.
func readMeta(p string) (templateMeta, error) {
	var meta templateMeta
	if p == "" {
		return meta, nil
	}
	data, err := os.ReadFile(p) // #nosec G304 -- user-provided path
	if err != nil {
		return meta, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	if err := yaml.UnmarshalWithOptions(data, &meta, yaml.Strict()); err != nil {
		return meta, fmt.Errorf("%w: parsing %s: %v", ErrUsage, p, err)
	}
	return meta, nil
}
