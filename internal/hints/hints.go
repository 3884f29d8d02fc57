// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/akannigil/oxygen-documentor-sub000/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for headless browser launch errors.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use a preinstalled Chrome")
	}
	return formatHints(hints)
}

// ForOfficeMissing returns a hint when no office suite binary is found.
func ForOfficeMissing() string {
	if os.Getenv("DOCUMENTOR_CONVERTER_OFFICE_BINARY") != "" {
		return format("check that DOCUMENTOR_CONVERTER_OFFICE_BINARY points to an executable")
	}
	return format("install LibreOffice or set DOCUMENTOR_CONVERTER_OFFICE_BINARY; the browser fallback is used meanwhile")
}

// ForTimeout returns a hint about increasing the converter timeout.
func ForTimeout() string {
	return format("for large documents, raise converter.timeout")
}

// ForBrokerUnavailable returns hints when the job queue database cannot be reached.
func ForBrokerUnavailable() string {
	hints := []string{"check DOCUMENTOR_DATABASE_URL"}
	if os.Getenv("DOCUMENTOR_QUEUE_DISABLED") == "" {
		hints = append(hints, "set DOCUMENTOR_QUEUE_DISABLED=true to run jobs inline")
	}
	return formatHints(hints)
}

// ForConfigNotFound returns hints for config file not found errors.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/documentor") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// ForMissingSecret returns a hint when certificate signing has no secret.
func ForMissingSecret() string {
	return format("set DOCUMENTOR_CERTIFICATE_SECRET or certificate.secret")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
