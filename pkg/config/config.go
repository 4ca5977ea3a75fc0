// Package config loads the operational configuration for the ruled
// daemon: HTTP server, database, auth, and ingest settings. Rule-set
// configuration (the YAML DSL from spec §6) is a separate concern
// handled by pkg/rules; this package covers everything that shapes the
// process itself, kept in the teacher's JSON convention since it has
// nothing to do with the rule DSL.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// OpsConfig represents the complete operational configuration.
type OpsConfig struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Ingest   IngestConfig   `json:"ingest"`
}

// ServerConfig contains the admin/monitoring HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file"`
}

// DatabaseConfig contains the flight-history sink's connection settings.
// Driver is always "postgres"; the field exists to mirror what getting
// added later would look like, same as the teacher's config.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`

	// Enabled gates whether the history sink is wired in at all — a
	// ruled process with no database configured simply skips the sink.
	Enabled      bool `json:"enabled"`
	MaxOpenConns int  `json:"max_open_conns"`
	MaxIdleConns int  `json:"max_idle_conns"`
}

// AuthConfig configures JWT issuance for the admin API.
type AuthConfig struct {
	// JWTSecret signs admin API tokens. Should be overridden via
	// RULED_JWT_SECRET in any non-development deployment.
	JWTSecret          string `json:"jwt_secret"`
	TokenDurationHours int    `json:"token_duration_hours"`
}

// IngestSource describes one configured report-stream source (spec §6:
// TCP JSON, websocket, HTTP-poll, or file replay).
type IngestSource struct {
	// Name is a friendly identifier for this source.
	Name string `json:"name"`

	// Kind selects the adapter: "tcp", "websocket", "poll", or "file".
	Kind string `json:"kind"`

	// Address is the dial target for tcp/websocket, the poll URL, or
	// the replay file path, depending on Kind.
	Address string `json:"address"`

	// RateLimitPerSecond throttles poll-kind sources' fetches. An HTTP
	// 429 response is returned as an ingest error; its Retry-After
	// header is not read.
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`

	// ReplayRealtime paces file-kind sources by their own inter-record
	// timestamp delta instead of replaying as fast as possible.
	ReplayRealtime bool `json:"replay_realtime"`
}

// IngestConfig selects and configures the report source plus the
// rule-engine inputs that live alongside it.
type IngestConfig struct {
	Source IngestSource `json:"source"`

	// RuleFile is the path to the YAML rule-set document (spec §6).
	RuleFile string `json:"rule_file"`

	// ExpirySeconds is spec §3 I3's EXPIRY, default 600 (10 minutes).
	ExpirySeconds float64 `json:"expiry_seconds"`

	// TimeZone is the IANA zone min_time/max_time conditions evaluate
	// against; empty means UTC (spec §9 open question).
	TimeZone string `json:"timezone"`

	// ShellActionsEnabled gates whether `shell` actions may actually
	// spawn subprocesses. False is the safe default for untrusted rule
	// files.
	ShellActionsEnabled bool `json:"shell_actions_enabled"`
}

// Load reads configuration from a JSON file. If the file doesn't exist,
// returns a default configuration.
func Load(path string) (*OpsConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg OpsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return &cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *OpsConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *OpsConfig {
	return &OpsConfig{
		Server: ServerConfig{
			Port:       "8080",
			Host:       "0.0.0.0",
			TLSEnabled: false,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "ruled",
			Username:     "ruled",
			SSLMode:      "disable",
			Enabled:      false,
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			JWTSecret:          "dev-secret-change-in-production",
			TokenDurationHours: 24,
		},
		Ingest: IngestConfig{
			Source: IngestSource{
				Name: "default",
				Kind: "file",
			},
			ExpirySeconds: 600,
			TimeZone:      "UTC",
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to
// the config, keeping secrets out of config files on disk.
func (c *OpsConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("RULED_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("RULED_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if secret := os.Getenv("RULED_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if ruleFile := os.Getenv("RULED_RULE_FILE"); ruleFile != "" {
		c.Ingest.RuleFile = ruleFile
	}
}
