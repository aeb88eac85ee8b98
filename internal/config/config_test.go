package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original := os.Getenv(key)
	_ = os.Setenv(key, value)
	t.Cleanup(func() {
		if original == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, original)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"GATEWAY_ADDR", "BACKEND_ORIGIN", "GATEWAY_RULES_FILE", "DEFAULT_DISTRICT"} {
		setEnv(t, key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8090" {
		t.Errorf("default addr: got %s", cfg.ListenAddr)
	}
	if cfg.BackendOrigin != "http://localhost:5000" {
		t.Errorf("default origin: got %s", cfg.BackendOrigin)
	}
	if cfg.Profile.District != "Kanpur" || cfg.Profile.Crop != "Wheat" {
		t.Errorf("default profile: %+v", cfg.Profile)
	}
	if cfg.QueueRetention != 24*time.Hour {
		t.Errorf("default retention: %v", cfg.QueueRetention)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	setEnv(t, "BACKEND_ORIGIN", "https://api.krishimitra.in/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendOrigin != "https://api.krishimitra.in" {
		t.Errorf("origin not trimmed: %s", cfg.BackendOrigin)
	}
}

func TestLoadRejectsBadOrigin(t *testing.T) {
	setEnv(t, "BACKEND_ORIGIN", "api.krishimitra.in")
	if _, err := Load(); err == nil {
		t.Error("expected error for origin without scheme")
	}
}

func TestDefaultPartitions(t *testing.T) {
	cfg := &Config{}
	parts := cfg.Partitions()
	if len(parts) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(parts))
	}
	byName := map[string]int{}
	for i, p := range parts {
		byName[p.Name] = i
	}
	api := parts[byName[PartitionAPI]]
	if api.MaxEntries != 30 || api.MaxAge != 24*time.Hour {
		t.Errorf("api-data defaults wrong: %+v", api)
	}
	img := parts[byName[PartitionImages]]
	if img.MaxEntries != 60 || img.MaxAge != 30*24*time.Hour {
		t.Errorf("images defaults wrong: %+v", img)
	}
	static := parts[byName[PartitionStatic]]
	if static.MaxAge != 0 {
		t.Errorf("static partition should not age out: %+v", static)
	}
}

func TestRulesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	rules := `
partitions:
  api-data:
    maxEntries: 50
    maxAge: 12h
dataRoutes:
  - /soil
`
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	setEnv(t, "GATEWAY_RULES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, p := range cfg.Partitions() {
		if p.Name == PartitionAPI {
			if p.MaxEntries != 50 || p.MaxAge != 12*time.Hour {
				t.Errorf("override not applied: %+v", p)
			}
		}
	}

	routes := cfg.DataRoutes()
	found := false
	for _, r := range routes {
		if r == "/soil" {
			found = true
		}
	}
	if !found {
		t.Errorf("extra data route missing: %v", routes)
	}
}

func TestRulesFileBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	if err := os.WriteFile(path, []byte("partitions:\n  api-data:\n    maxAge: soon\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	setEnv(t, "GATEWAY_RULES_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable maxAge")
	}
}
