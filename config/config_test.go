package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Classifier.Segments != 5 {
		t.Errorf("expected Segments=5, got %d", cfg.Classifier.Segments)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.StreamRetry.MaxDelay != 10*time.Second {
		t.Errorf("expected stream MaxDelay=10s, got %v", cfg.StreamRetry.MaxDelay)
	}
	if cfg.Audit.HistorySize != 5 {
		t.Errorf("expected HistorySize=5, got %d", cfg.Audit.HistorySize)
	}
	if cfg.Audit.Passes["relevance"].History {
		t.Error("expected relevance history disabled by default")
	}
	if got := cfg.Extraction.Strategies["report-deviation"]; got.Strategy != "fixed" || got.Size != 4 {
		t.Errorf("expected report-deviation fixed/4, got %+v", got)
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
	configPath := filepath.Join(tmpDir, "perfaudit.yaml")

	content := `
retry:
  base_delay: 250ms
  max_retries: 3
audit:
  followup_delay: 1s
  passes:
    relevance:
      history: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("expected BaseDelay=250ms, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Audit.FollowupDelay != time.Second {
		t.Errorf("expected FollowupDelay=1s, got %v", cfg.Audit.FollowupDelay)
	}
	if !cfg.Audit.Passes["relevance"].History {
		t.Error("expected relevance history enabled")
	}
	if !cfg.Audit.Passes["consistency"].History {
		t.Error("expected consistency history kept from defaults")
	}
}

func TestLoad_InvalidStrategy(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "perfaudit.yaml")

	content := `
extraction:
  strategies:
    plan-indicators:
      strategy: sentences
      size: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for unknown chunk strategy")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, DataDir, "config.yaml")

	content := `
store:
  driver: sqlite
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %s", cfg.Store.Driver)
	}
}

func TestStoreDBPath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.StoreDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".perfaudit", "audit.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Driver = "sqlite"
	path = cfg.StoreDBPath("/home/user/project")
	expected = filepath.Join("/home/user/project", ".perfaudit", "audit.sqlite")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "perfaudit.yaml")

	cfg := DefaultConfig()
	cfg.Chain.MaxContinuations = 3
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Chain.MaxContinuations != 3 {
		t.Errorf("expected MaxContinuations=3, got %d", loaded.Chain.MaxContinuations)
	}
	if loaded.StreamRetry.MaxDelay != 10*time.Second {
		t.Errorf("expected stream MaxDelay=10s, got %v", loaded.StreamRetry.MaxDelay)
	}
}
