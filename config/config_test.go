package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Search.TopN != 10 {
		t.Errorf("expected TopN=10, got %d", cfg.Search.TopN)
	}
	if cfg.Index.MinTokenLen != 2 {
		t.Errorf("expected MinTokenLen=2, got %d", cfg.Index.MinTokenLen)
	}
	if !cfg.Index.Stemming {
		t.Error("expected stemming enabled by default")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected cache TTL=5m, got %s", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vsearch.yaml")

	content := `
index:
  stemming: false
  workers: 3
search:
  top_n: 5
cache:
  ttl: 30s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.Stemming != false {
		t.Errorf("expected Stemming=false, got %v", cfg.Index.Stemming)
	}
	if cfg.Index.Workers != 3 {
		t.Errorf("expected Workers=3, got %d", cfg.Index.Workers)
	}
	if cfg.Search.TopN != 5 {
		t.Errorf("expected TopN=5, got %d", cfg.Search.TopN)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("expected TTL=30s, got %s", cfg.Cache.TTL)
	}
	// untouched sections keep their defaults
	if cfg.Index.MinTokenLen != 2 {
		t.Errorf("expected MinTokenLen default 2, got %d", cfg.Index.MinTokenLen)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero top_n", "search:\n  top_n: 0\n"},
		{"negative workers", "index:\n  workers: -1\n"},
		{"unknown level", "logging:\n  level: loud\n"},
		{"unknown format", "logging:\n  format: xml\n"},
		{"malformed yaml", "search: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vsearch.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestValidate_LoggingSpellings(t *testing.T) {
	tests := []struct {
		level, format         string
		wantLevel, wantFormat string
	}{
		{"WARNING", "JSON", "warn", "json"},
		{" Debug ", "Console", "debug", "console"},
		{"", "", "info", "console"},
		{"error", "json", "error", "json"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Logging.Level = tt.level
		cfg.Logging.Format = tt.format
		if err := cfg.Validate(); err != nil {
			t.Errorf("level %q format %q: %v", tt.level, tt.format, err)
			continue
		}
		if cfg.Logging.Level != tt.wantLevel || cfg.Logging.Format != tt.wantFormat {
			t.Errorf("level %q format %q: got %q/%q, want %q/%q",
				tt.level, tt.format, cfg.Logging.Level, cfg.Logging.Format, tt.wantLevel, tt.wantFormat)
		}
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".vsearch"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".vsearch", "config.yaml")

	content := `
serve:
  port: 9191
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Serve.Port != 9191 {
		t.Errorf("expected Port=9191, got %d", cfg.Serve.Port)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsearch.yaml")

	cfg := DefaultConfig()
	cfg.Search.TopN = 42
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Search.TopN != 42 {
		t.Errorf("expected TopN=42, got %d", loaded.Search.TopN)
	}
}
