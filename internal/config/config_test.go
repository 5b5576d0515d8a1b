package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Port != def.Port || cfg.Bind != def.Bind {
		t.Fatalf("Load() = %s:%d, want %s:%d", cfg.Bind, cfg.Port, def.Bind, def.Port)
	}
	if cfg.DeliveryTimeoutSeconds != 15 {
		t.Fatalf("DeliveryTimeoutSeconds = %d, want 15", cfg.DeliveryTimeoutSeconds)
	}
}

func TestLoad_OverridesFromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"port": 9999, "stats_retention_days": 7}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.StatsRetentionDays != 7 {
		t.Fatalf("StatsRetentionDays = %d, want 7", cfg.StatsRetentionDays)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Fatalf("Bind = %q, want default", cfg.Bind)
	}
}

func TestLoad_YAMLFallback(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlData := "port: 7000\nlog_level: debug\ndisabled_tools:\n  - capture_purge\n"
	if err := os.WriteFile(configPath, []byte(yamlData), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "capture_purge" {
		t.Fatalf("DisabledTools = %v", cfg.DisabledTools)
	}
}

func TestLoad_JSONWinsOverYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"port": 1111}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("port: 2222\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 1111 {
		t.Fatalf("Port = %d, want 1111", cfg.Port)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("port: [unclosed\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestMerge(t *testing.T) {
	base := &Config{
		Bind:          "127.0.0.1",
		Port:          8765,
		AllowedPaths:  []string{"/a", "/b"},
		DisabledTools: []string{"capture_purge"},
	}
	overlay := &Config{
		Port:          9000,
		AllowedPaths:  []string{" /b ", "/c"},
		DisabledTools: []string{"capture_purge"},
	}

	result := Merge(base, overlay)

	if result.Port != 9000 {
		t.Errorf("Port = %d, want 9000", result.Port)
	}
	if result.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want base value", result.Bind)
	}
	wantPaths := []string{"/a", "/b", "/c"}
	if len(result.AllowedPaths) != len(wantPaths) {
		t.Fatalf("AllowedPaths = %v, want %v", result.AllowedPaths, wantPaths)
	}
	for i, p := range wantPaths {
		if result.AllowedPaths[i] != p {
			t.Errorf("AllowedPaths[%d] = %q, want %q", i, result.AllowedPaths[i], p)
		}
	}
	if len(result.DisabledTools) != 1 {
		t.Errorf("DisabledTools = %v, want one entry", result.DisabledTools)
	}
}

func TestMergeStringSlice_Empty(t *testing.T) {
	if got := mergeStringSlice(nil, []string{" ", ""}); got != nil {
		t.Errorf("mergeStringSlice() = %v, want nil", got)
	}
}

func TestDeliveryTimeout(t *testing.T) {
	if got := (&Config{DeliveryTimeoutSeconds: 3}).DeliveryTimeout(); got != 3*time.Second {
		t.Errorf("DeliveryTimeout() = %v, want 3s", got)
	}
	if got := (&Config{}).DeliveryTimeout(); got != 15*time.Second {
		t.Errorf("DeliveryTimeout() zero = %v, want 15s", got)
	}
	var nilCfg *Config
	if got := nilCfg.DeliveryTimeout(); got != 15*time.Second {
		t.Errorf("DeliveryTimeout() nil = %v, want 15s", got)
	}
}

func TestLoad_YMLExtension(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yml"), []byte("bind: 0.0.0.0\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bind != "0.0.0.0" {
		t.Fatalf("Bind = %q, want 0.0.0.0", cfg.Bind)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Fatalf("Port = %d, want default", cfg.Port)
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	tmpDir := t.TempDir()
	data := `{"allowed_origins": ["http://localhost:5678", " http://localhost:5678 "]}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5678" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}
