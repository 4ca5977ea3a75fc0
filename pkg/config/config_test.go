package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.TLSEnabled {
		t.Error("Expected TLS disabled by default")
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Enabled {
		t.Error("Expected database sink disabled by default")
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Expected max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}

	if cfg.Auth.TokenDurationHours != 24 {
		t.Errorf("Expected 24h token duration, got %d", cfg.Auth.TokenDurationHours)
	}

	if cfg.Ingest.ExpirySeconds != 600 {
		t.Errorf("Expected default expiry 600s, got %f", cfg.Ingest.ExpirySeconds)
	}
	if cfg.Ingest.TimeZone != "UTC" {
		t.Errorf("Expected UTC timezone, got %s", cfg.Ingest.TimeZone)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config, got nil")
	}
	if cfg.Server.Port != "8080" {
		t.Error("Did not get default config for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	testConfig := &OpsConfig{
		Server: ServerConfig{
			Port:       "9090",
			Host:       "127.0.0.1",
			TLSEnabled: true,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "db.example.com",
			Port:     5433,
			Database: "testdb",
			Username: "testuser",
			Enabled:  true,
		},
		Ingest: IngestConfig{
			Source:        IngestSource{Name: "test-source", Kind: "tcp", Address: "127.0.0.1:30003"},
			RuleFile:      "rules.yaml",
			ExpirySeconds: 120,
			TimeZone:      "America/New_York",
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Expected db.example.com, got %s", cfg.Database.Host)
	}
	if cfg.Ingest.Source.Kind != "tcp" {
		t.Errorf("Expected tcp ingest kind, got %s", cfg.Ingest.Source.Kind)
	}
	if cfg.Ingest.ExpirySeconds != 120 {
		t.Errorf("Expected expiry 120, got %f", cfg.Ingest.ExpirySeconds)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	if err := os.WriteFile(configPath, []byte("{ invalid json }"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
	if err != nil && !contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved-config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = "9999"
	cfg.Ingest.RuleFile = "airport.yaml"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Server.Port != "9999" {
		t.Errorf("Expected port 9999, got %s", loaded.Server.Port)
	}
	if loaded.Ingest.RuleFile != "airport.yaml" {
		t.Errorf("Expected rule file airport.yaml, got %s", loaded.Ingest.RuleFile)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config with nested directory: %v", err)
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Directory was not created")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("RULED_PORT", "7777")
	os.Setenv("RULED_DB_PASSWORD", "env-password")
	os.Setenv("RULED_JWT_SECRET", "env-secret")
	os.Setenv("RULED_RULE_FILE", "env-rules.yaml")
	defer func() {
		os.Unsetenv("RULED_PORT")
		os.Unsetenv("RULED_DB_PASSWORD")
		os.Unsetenv("RULED_JWT_SECRET")
		os.Unsetenv("RULED_RULE_FILE")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	testCfg := DefaultConfig()
	testCfg.Server.Port = "8080"
	testCfg.Database.Password = "original-password"

	data, _ := json.Marshal(testCfg)
	os.WriteFile(configPath, data, 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777 from env, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env-password from env, got %s", cfg.Database.Password)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env-secret from env, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Ingest.RuleFile != "env-rules.yaml" {
		t.Errorf("Expected env-rules.yaml from env, got %s", cfg.Ingest.RuleFile)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "roundtrip.json")

	original := DefaultConfig()
	original.Server.Port = "3000"
	original.Server.TLSEnabled = true
	original.Ingest.Source = IngestSource{Name: "replay", Kind: "file", Address: "sample.ndjson"}

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if loaded.Server.Port != original.Server.Port {
		t.Error("Port not preserved in round trip")
	}
	if loaded.Server.TLSEnabled != original.Server.TLSEnabled {
		t.Error("TLS setting not preserved in round trip")
	}
	if loaded.Ingest.Source.Address != original.Ingest.Source.Address {
		t.Error("Ingest source address not preserved in round trip")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && len(substr) > 0 && hasSubstring(s, substr)))
}

func hasSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
