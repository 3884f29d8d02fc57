package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/convert"
	"github.com/akannigil/oxygen-documentor-sub000/internal/fileutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
)

const queueProbeTimeout = 5 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string        `json:"status"` // "ready", "warnings", "errors"
	Office   converterInfo `json:"office"`
	Browser  converterInfo `json:"browser"`
	Queue    queueInfo     `json:"queue"`
	Env      envInfo       `json:"environment"`
	System   systemInfo    `json:"system"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type converterInfo struct {
	Enabled bool   `json:"enabled"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Sandbox *bool  `json:"sandbox,omitempty"`
}

type queueInfo struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
}

type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
}

type systemInfo struct {
	TempWritable    bool   `json:"temp_writable"`
	StorageBackend  string `json:"storage_backend"`
	StorageWritable *bool  `json:"storage_writable,omitempty"`
}

// doctorProbes locates external dependencies. Tests replace them.
type doctorProbes struct {
	officePath  func(cfg *config.Config) (string, error)
	browserPath func() (string, bool)
	pingQueue   func(ctx context.Context, cfg *config.Config) error
}

func defaultProbes() doctorProbes {
	return doctorProbes{
		officePath: func(cfg *config.Config) (string, error) {
			return convert.NewOfficeConverter(cfg.Converter.OfficeBinary, cfg.Converter.Timeout).LookPath()
		},
		browserPath: convert.BrowserPath,
		pingQueue: func(ctx context.Context, cfg *config.Config) error {
			cfg.Queue.ConnectRetries = 0
			rt, err := connectClient(ctx, cfg)
			if err != nil {
				return err
			}
			return rt.Close(ctx)
		},
	}
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(ctx context.Context, args []string, env *Environment) int {
	return doctor(ctx, args, env, defaultProbes())
}

func doctor(ctx context.Context, args []string, env *Environment, probes doctorProbes) int {
	fs := newFlagSet("doctor", env)
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	var common commonFlags
	addCommonFlags(fs, &common)
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, "Error:", err)
		return ExitUsage
	}

	cfg, err := loadConfig(common)
	if err != nil {
		fmt.Fprintln(env.Stderr, "Error:", err)
		return exitCodeFor(err)
	}

	result := runDoctor(ctx, cfg, probes)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, cfg *config.Config, probes doctorProbes) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			NoSandbox: os.Getenv("ROD_NO_SANDBOX"),
		},
	}

	checkConverters(result, cfg, probes)
	checkEnvironment(result)
	checkSystem(result, cfg)
	checkQueue(ctx, result, cfg, probes)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

func checkConverters(result *doctorResult, cfg *config.Config, probes doctorProbes) {
	result.Office.Enabled = !cfg.Converter.DisableOffice
	if result.Office.Enabled {
		if p, err := probes.officePath(cfg); err == nil {
			result.Office.Found, result.Office.Path = true, p
		} else {
			result.Warnings = append(result.Warnings, "Office suite not found: "+err.Error())
		}
	}

	result.Browser.Enabled = !cfg.Converter.DisableBrowser
	if result.Browser.Enabled {
		if p, ok := probes.browserPath(); ok {
			sandbox := result.Env.NoSandbox != "1"
			result.Browser.Found, result.Browser.Path, result.Browser.Sandbox = true, p, &sandbox
		} else {
			result.Warnings = append(result.Warnings, "Chrome/Chromium not found. Install Chrome or set ROD_BROWSER_BIN")
		}
	}

	if !result.Office.Found && !result.Browser.Found {
		result.Warnings = append(result.Warnings, "No converter available: PDF output from docx templates will fail")
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if result.Browser.Found && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("DOCUMENTOR_CONTAINER") == "1" {
		return true, "DOCUMENTOR_CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

func checkSystem(result *doctorResult, cfg *config.Config) {
	tmpDir := os.TempDir()
	if err := fileutil.DirWritable(tmpDir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		result.System.TempWritable = true
	}

	result.System.StorageBackend = cfg.Storage.Backend
	if cfg.Storage.Backend != storage.BackendFilesystem {
		return
	}
	writable := os.MkdirAll(cfg.Storage.Root, 0o750) == nil && fileutil.DirWritable(cfg.Storage.Root) == nil
	result.System.StorageWritable = &writable
	if !writable {
		result.Errors = append(result.Errors, fmt.Sprintf("Storage root not writable: %s", cfg.Storage.Root))
	}
}

func checkQueue(ctx context.Context, result *doctorResult, cfg *config.Config, probes doctorProbes) {
	result.Queue.Configured = !cfg.Queue.Disabled && cfg.QueueDSN() != ""
	if !result.Queue.Configured {
		result.Warnings = append(result.Warnings, "No job queue configured: jobs run inline")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, queueProbeTimeout)
	defer cancel()
	if err := probes.pingQueue(ctx, cfg); err != nil {
		result.Queue.Error = err.Error()
		result.Warnings = append(result.Warnings, "Job queue unreachable: jobs run inline"+hints.ForBrokerUnavailable())
		return
	}
	result.Queue.Reachable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "documentor doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Converters")
	printConverter(w, "Office suite", r.Office)
	printConverter(w, "Chrome/Chromium", r.Browser)
	if r.Browser.Sandbox != nil && !*r.Browser.Sandbox {
		fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Job queue")
	switch {
	case !r.Queue.Configured:
		fmt.Fprintln(w, "  [WARN] Not configured")
	case r.Queue.Reachable:
		fmt.Fprintln(w, "  [OK] Reachable")
	default:
		fmt.Fprintf(w, "  [WARN] Unreachable: %s\n", r.Queue.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintf(w, "  [OK] Storage backend: %s\n", r.System.StorageBackend)
	if r.System.StorageWritable != nil && !*r.System.StorageWritable {
		fmt.Fprintln(w, "  [ERROR] Storage root: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func printConverter(w io.Writer, name string, c converterInfo) {
	switch {
	case !c.Enabled:
		fmt.Fprintf(w, "  [OK] %s: disabled\n", name)
	case c.Found:
		fmt.Fprintf(w, "  [OK] %s: %s\n", name, c.Path)
	default:
		fmt.Fprintf(w, "  [WARN] %s: not found\n", name)
	}
}
