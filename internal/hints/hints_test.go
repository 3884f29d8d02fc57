package hints

// Tests in this file use t.Setenv and swap IsInContainer, so they do not
// run in parallel.

import (
	"strings"
	"testing"
)

func TestForBrowserConnect(t *testing.T) {
	tests := []struct {
		name        string
		container   bool
		ci          string
		noSandbox   string
		browserBin  string
		wantSandbox bool
		wantBin     bool
	}{
		{name: "ci", ci: "true", wantSandbox: true, wantBin: true},
		{name: "docker", container: true, wantSandbox: true, wantBin: true},
		{name: "sandbox already disabled", container: true, noSandbox: "1", wantBin: true},
		{name: "browser bin set", browserBin: "/usr/bin/chrome"},
		{name: "all configured", container: true, ci: "true", noSandbox: "1", browserBin: "/usr/bin/chrome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := IsInContainer
			defer func() { IsInContainer = orig }()
			IsInContainer = func() bool { return tt.container }

			t.Setenv("CI", tt.ci)
			t.Setenv("GITHUB_ACTIONS", "")
			t.Setenv("GITLAB_CI", "")
			t.Setenv("JENKINS_URL", "")
			t.Setenv("ROD_NO_SANDBOX", tt.noSandbox)
			t.Setenv("ROD_BROWSER_BIN", tt.browserBin)

			hint := ForBrowserConnect()
			if got := strings.Contains(hint, "ROD_NO_SANDBOX"); got != tt.wantSandbox {
				t.Errorf("sandbox hint = %v, want %v (%q)", got, tt.wantSandbox, hint)
			}
			if got := strings.Contains(hint, "ROD_BROWSER_BIN"); got != tt.wantBin {
				t.Errorf("browser bin hint = %v, want %v (%q)", got, tt.wantBin, hint)
			}
			if !tt.wantSandbox && !tt.wantBin && hint != "" {
				t.Errorf("expected no hint, got %q", hint)
			}
		})
	}
}

func TestForOfficeMissing(t *testing.T) {
	t.Setenv("DOCUMENTOR_CONVERTER_OFFICE_BINARY", "")
	if h := ForOfficeMissing(); !strings.Contains(h, "install LibreOffice") {
		t.Errorf("unexpected hint %q", h)
	}

	t.Setenv("DOCUMENTOR_CONVERTER_OFFICE_BINARY", "/opt/soffice")
	if h := ForOfficeMissing(); !strings.Contains(h, "points to an executable") {
		t.Errorf("unexpected hint %q", h)
	}
}

func TestForBrokerUnavailable(t *testing.T) {
	t.Setenv("DOCUMENTOR_QUEUE_DISABLED", "")
	if h := ForBrokerUnavailable(); !strings.Contains(h, "DOCUMENTOR_QUEUE_DISABLED=true") {
		t.Errorf("expected inline fallback suggestion, got %q", h)
	}

	t.Setenv("DOCUMENTOR_QUEUE_DISABLED", "false")
	if h := ForBrokerUnavailable(); strings.Contains(h, "QUEUE_DISABLED") {
		t.Errorf("should not repeat an explicit setting: %q", h)
	}
}

func TestForConfigNotFound(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		contains string
	}{
		{"empty paths", nil, "--config"},
		{"user config suggested", []string{"./documentor.yaml", "/home/u/.config/documentor/config.yaml"}, "create /home/u/.config/documentor/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hint := ForConfigNotFound(tt.paths); !strings.Contains(hint, tt.contains) {
				t.Errorf("hint %q does not contain %q", hint, tt.contains)
			}
		})
	}
}

func TestFormat_Consistency(t *testing.T) {
	for _, h := range []string{ForTimeout(), ForMissingSecret(), ForOfficeMissing(), ForConfigNotFound(nil)} {
		if !strings.HasPrefix(h, "\n  hint: ") {
			t.Errorf("hint format inconsistent: %q", h)
		}
	}
}
