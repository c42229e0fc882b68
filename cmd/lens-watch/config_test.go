// ABOUTME: Tests for watch daemon configuration loading
// ABOUTME: Covers TOML parsing, env var expansion, duration defaults, and validation

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"
token = "secret-token"

[watch]
dirs = ["/data/inbox", "/data/reports"]
extensions = ["pdf", "csv"]
settle = "500ms"

[dedupe]
ttl = "1h"
max_entries = 50

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.Token != "secret-token" {
		t.Errorf("Backend.Token = %q", cfg.Backend.Token)
	}
	if len(cfg.Watch.Dirs) != 2 || cfg.Watch.Dirs[0] != "/data/inbox" {
		t.Errorf("Watch.Dirs = %v", cfg.Watch.Dirs)
	}
	if len(cfg.Watch.Extensions) != 2 {
		t.Errorf("Watch.Extensions = %v", cfg.Watch.Extensions)
	}
	if cfg.Watch.Settle != 500*time.Millisecond {
		t.Errorf("Watch.Settle = %v, want 500ms", cfg.Watch.Settle)
	}
	if cfg.Dedupe.TTL != time.Hour {
		t.Errorf("Dedupe.TTL = %v, want 1h", cfg.Dedupe.TTL)
	}
	if cfg.Dedupe.MaxEntries != 50 {
		t.Errorf("Dedupe.MaxEntries = %d, want 50", cfg.Dedupe.MaxEntries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"

[watch]
dirs = ["/data/inbox"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Watch.Settle != defaultSettle {
		t.Errorf("Watch.Settle = %v, want default %v", cfg.Watch.Settle, defaultSettle)
	}
	if cfg.Dedupe.TTL != defaultDedupeTTL {
		t.Errorf("Dedupe.TTL = %v, want default %v", cfg.Dedupe.TTL, defaultDedupeTTL)
	}
	if cfg.Dedupe.MaxEntries != defaultMaxEntries {
		t.Errorf("Dedupe.MaxEntries = %d, want default %d", cfg.Dedupe.MaxEntries, defaultMaxEntries)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("WATCH_TEST_TOKEN", "expanded-token")

	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"
token = "${WATCH_TEST_TOKEN}"

[watch]
dirs = ["/data/inbox"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Token != "expanded-token" {
		t.Errorf("Backend.Token = %q", cfg.Backend.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[backend\nurl = ")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid TOML, got nil")
	}
}

func TestLoad_InvalidSettle(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"

[watch]
dirs = ["/data/inbox"]
settle = "soon"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid settle, got nil")
	}
	if !strings.Contains(err.Error(), "watch.settle") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_NegativeSettle(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"

[watch]
dirs = ["/data/inbox"]
settle = "-1s"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for negative settle, got nil")
	}
}

func TestLoad_ZeroTTL(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "http://localhost:8000"

[watch]
dirs = ["/data/inbox"]

[dedupe]
ttl = "0s"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for zero ttl, got nil")
	}
	if !strings.Contains(err.Error(), "dedupe.ttl") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing backend url",
			configContent: `
[watch]
dirs = ["/data/inbox"]
`,
			wantErrSubstr: "backend.url is required",
		},
		{
			name: "unsupported scheme",
			configContent: `
[backend]
url = "ftp://example.com"

[watch]
dirs = ["/data/inbox"]
`,
			wantErrSubstr: "http or https",
		},
		{
			name: "missing watch dirs",
			configContent: `
[backend]
url = "http://localhost:8000"
`,
			wantErrSubstr: "watch.dirs is required",
		},
		{
			name: "blank watch dir",
			configContent: `
[backend]
url = "http://localhost:8000"

[watch]
dirs = ["/data/inbox", "  "]
`,
			wantErrSubstr: "empty entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configContent)

			_, err := Load(path)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErrSubstr)
			}
		})
	}
}
