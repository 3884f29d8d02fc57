// Package config loads service configuration from a YAML file with
// DOCUMENTOR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/akannigil/oxygen-documentor-sub000/internal/dateutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCUMENTOR"

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrEnvOverride     = errors.New("invalid environment override")
	ErrInvalid         = errors.New("invalid config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
)

// Field length limits.
const (
	MaxURLLength    = 2048
	MaxSecretLength = 512
	MaxEmailLength  = 254 // RFC 5321
)

// Config is the complete service configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Queue       QueueConfig       `yaml:"queue"`
	Storage     StorageConfig     `yaml:"storage"`
	Certificate CertificateConfig `yaml:"certificate"`
	Converter   ConverterConfig   `yaml:"converter"`
	Fonts       FontsConfig       `yaml:"fonts"`
	Email       EmailConfig       `yaml:"email"`
	Events      EventsConfig      `yaml:"events"`
	Server      ServerConfig      `yaml:"server"`
	Format      FormatConfig      `yaml:"format"`
	Assets      AssetsConfig      `yaml:"assets"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn" envconfig:"URL"`
}

// QueueConfig configures the job broker.
type QueueConfig struct {
	Disabled bool `yaml:"disabled"`
	// URL is the Postgres DSN of the job tables. Empty reuses the database
	// DSN when the database driver is postgres.
	URL               string        `yaml:"url"`
	GenerationWorkers int           `yaml:"generationWorkers" split_words:"true"`
	EmailWorkers      int           `yaml:"emailWorkers" split_words:"true"`
	MaxAttempts       int           `yaml:"maxAttempts" split_words:"true"`
	Retention         time.Duration `yaml:"retention"`
	ConnectRetries    int           `yaml:"connectRetries" split_words:"true"`
	ConnectBackoff    time.Duration `yaml:"connectBackoff" split_words:"true"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // filesystem, minio or gcs

	Root    string `yaml:"root"`
	BaseURL string `yaml:"baseUrl" split_words:"true"`
	Secret  string `yaml:"secret"`

	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey" split_words:"true"`
	SecretKey string `yaml:"secretKey" split_words:"true"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSsl" envconfig:"USE_SSL"`
	PublicURL string `yaml:"publicUrl" split_words:"true"`

	CredentialsFile string `yaml:"credentialsFile" split_words:"true"`
}

type CertificateConfig struct {
	Secret        string        `yaml:"secret"`
	Algorithm     string        `yaml:"algorithm"` // sha256 or sha512
	VerifyBaseURL string        `yaml:"verifyBaseUrl" envconfig:"VERIFY_BASE_URL"`
	DefaultExpiry time.Duration `yaml:"defaultExpiry" split_words:"true"`
}

type ConverterConfig struct {
	OfficeBinary   string        `yaml:"officeBinary" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout"`
	BrowserTimeout time.Duration `yaml:"browserTimeout" split_words:"true"`
	PoolSize       int           `yaml:"poolSize" split_words:"true"` // 0 = from GOMAXPROCS
	DisableOffice  bool          `yaml:"disableOffice" split_words:"true"`
	DisableBrowser bool          `yaml:"disableBrowser" split_words:"true"`
}

type FontsConfig struct {
	BaseURL  string        `yaml:"baseUrl" split_words:"true"`
	Fallback string        `yaml:"fallback"`
	Timeout  time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type EventsConfig struct {
	NATSURL string `yaml:"natsUrl" envconfig:"NATS_URL"`
	Prefix  string `yaml:"prefix"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AssetsConfig points at a directory overriding the embedded stylesheets
// (styles/*.css) and email templates (templates/*.html).
type AssetsConfig struct {
	Dir string `yaml:"dir"`
}

type FormatConfig struct {
	DateFormat string `yaml:"dateFormat" split_words:"true"`
}

// DefaultConfig returns a single-node configuration: SQLite, local
// filesystem storage, converters enabled.
func DefaultConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: log.FormatJSON},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "documentor.db"},
		Queue: QueueConfig{
			GenerationWorkers: 5,
			EmailWorkers:      10,
			MaxAttempts:       3,
			Retention:         24 * time.Hour,
			ConnectRetries:    5,
			ConnectBackoff:    time.Second,
		},
		Storage:     StorageConfig{Backend: storage.BackendFilesystem, Root: "data"},
		Certificate: CertificateConfig{Algorithm: "sha256"},
		Converter: ConverterConfig{
			Timeout:        30 * time.Second,
			BrowserTimeout: 60 * time.Second,
		},
		Fonts:  FontsConfig{Timeout: 10 * time.Second},
		Email:  EmailConfig{Port: 587},
		Server: ServerConfig{Addr: ":8080"},
		Format: FormatConfig{DateFormat: dateutil.DefaultDateFormat},
	}
}

// Load builds the configuration: defaults, then the file at nameOrPath
// when non-empty, then environment overrides. The result is validated.
func Load(nameOrPath string) (*Config, error) {
	cfg := DefaultConfig()

	if nameOrPath != "" {
		path := nameOrPath
		if !isFilePath(nameOrPath) {
			var err error
			if path, err = resolveConfigPath(nameOrPath); err != nil {
				return nil, err
			}
		}
		data, err := os.ReadFile(path) // #nosec G304 -- config path is operator-provided
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with DOCUMENTOR_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvOverride, err)
	}
	return nil
}

// QueueDSN is the Postgres DSN of the job tables, or empty when none is
// configured.
func (c *Config) QueueDSN() string {
	if c.Queue.URL != "" {
		return c.Queue.URL
	}
	if c.Database.Driver == "postgres" {
		return c.Database.DSN
	}
	return ""
}

// QueueOptions converts the queue section for queue.NewRuntime.
func (c *Config) QueueOptions() queue.Config {
	q := c.Queue
	return queue.Config{
		DSN:               c.QueueDSN(),
		Disabled:          q.Disabled,
		GenerationWorkers: q.GenerationWorkers,
		EmailWorkers:      q.EmailWorkers,
		MaxAttempts:       q.MaxAttempts,
		Retention:         q.Retention,
		ConnectRetries:    q.ConnectRetries,
		ConnectBackoff:    q.ConnectBackoff,
	}
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Config {
	s := c.Storage
	return storage.Config{
		Backend: s.Backend,
		Root:    s.Root,
		BaseURL: s.BaseURL,
		Secret:  s.Secret,
		MinIO: storage.MinIOConfig{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Bucket:    s.Bucket,
			UseSSL:    s.UseSSL,
			PublicURL: s.PublicURL,
		},
		GCSBucket:          s.Bucket,
		GCSCredentialsFile: s.CredentialsFile,
	}
}

// Validate checks enumerations, ranges and required fields.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if err := oneOf("log.format", c.Log.Format, "", log.FormatJSON, log.FormatConsole); err != nil {
		return err
	}
	if err := oneOf("database.driver", c.Database.Driver, "postgres", "sqlite"); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalid)
	}

	q := c.Queue
	if q.GenerationWorkers < 1 || q.EmailWorkers < 1 {
		return fmt.Errorf("%w: queue workers must be at least 1", ErrInvalid)
	}
	if q.MaxAttempts < 1 {
		return fmt.Errorf("%w: queue.maxAttempts must be at least 1", ErrInvalid)
	}
	if q.Retention < 0 || q.ConnectBackoff < 0 || q.ConnectRetries < 0 {
		return fmt.Errorf("%w: queue durations and retries cannot be negative", ErrInvalid)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := oneOf("certificate.algorithm", c.Certificate.Algorithm, "", "sha256", "sha512"); err != nil {
		return err
	}
	if err := validateFieldLength("certificate.secret", c.Certificate.Secret, MaxSecretLength); err != nil {
		return err
	}
	if err := validateURL("certificate.verifyBaseUrl", c.Certificate.VerifyBaseURL); err != nil {
		return err
	}

	if c.Converter.Timeout <= 0 || c.Converter.BrowserTimeout <= 0 {
		return fmt.Errorf("%w: converter timeouts must be positive", ErrInvalid)
	}
	if c.Converter.PoolSize < 0 {
		return fmt.Errorf("%w: converter.poolSize cannot be negative", ErrInvalid)
	}
	if err := validateURL("fonts.baseUrl", c.Fonts.BaseURL); err != nil {
		return err
	}

	if c.Email.Port < 0 || c.Email.Port > 65535 {
		return fmt.Errorf("%w: email.port out of range: %d", ErrInvalid, c.Email.Port)
	}
	if err := validateFieldLength("email.from", c.Email.From, MaxEmailLength); err != nil {
		return err
	}

	if c.Format.DateFormat != "" {
		if _, err := dateutil.ParseDateFormat(c.Format.DateFormat); err != nil {
			return fmt.Errorf("%w: format.dateFormat: %v", ErrInvalid, err)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	switch s.Backend {
	case "", storage.BackendFilesystem:
		if s.Root == "" {
			return fmt.Errorf("%w: storage.root is required for the filesystem backend", ErrInvalid)
		}
		return validateURL("storage.baseUrl", s.BaseURL)
	case storage.BackendMinIO:
		if s.Endpoint == "" || s.Bucket == "" {
			return fmt.Errorf("%w: storage.endpoint and storage.bucket are required for minio", ErrInvalid)
		}
		return validateURL("storage.publicUrl", s.PublicURL)
	case storage.BackendGCS:
		if s.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for gcs", ErrInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: storage.backend: unknown %q", ErrInvalid, s.Backend)
	}
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s: unknown value %q", ErrInvalid, field, value)
}

func validateURL(field, value string) error {
	if value == "" {
		return nil
	}
	if err := validateFieldLength(field, value, MaxURLLength); err != nil {
		return err
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" && u.Scheme != "file" {
		return fmt.Errorf("%w: %s: %q is not an absolute URL", ErrInvalid, field, value)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for name.yaml or name.yml in the current
// directory, then in the user config directory under documentor/.
func resolveConfigPath(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyConfigName
	}
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		p := name + ext
		if fileExists(p) {
			return p, nil
		}
		tried = append(tried, p)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			p := filepath.Join(dir, "documentor", name+ext)
			if fileExists(p) {
				return p, nil
			}
			tried = append(tried, p)
		}
	}
	return "", fmt.Errorf("%w: tried %s%s", ErrConfigNotFound, strings.Join(tried, ", "), hints.ForConfigNotFound(tried))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
