// Package config loads the toolgate configuration file. The permission
// rule set may live inline or in a separate file so it can be
// hot-reloaded without touching server settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolgate/toolgate/internal/policy"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit"`
	Approvals ApprovalsConfig `yaml:"approvals"`
	Guard     GuardConfig     `yaml:"guard"`

	// Permissions is the inline rule set. PermissionsFile, when set,
	// overrides it and is what the hot-reload watcher tracks.
	Permissions     policy.PermissionConfig `yaml:"permissions"`
	PermissionsFile string                  `yaml:"permissions_file,omitempty"`
}

type ServerConfig struct {
	Addr         string     `yaml:"addr"`
	ReadTimeout  Duration   `yaml:"read_timeout,omitempty"`
	WriteTimeout Duration   `yaml:"write_timeout,omitempty"`
	Auth         AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	// Type is "none" or "api_key".
	Type       string   `yaml:"type"`
	HeaderName string   `yaml:"header_name,omitempty"`
	Keys       []string `yaml:"keys,omitempty"`
	KeysFile   string   `yaml:"keys_file,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days,omitempty"`
}

type ApprovalsConfig struct {
	// Mode selects the confirmation collaborator: "api" (suspend until
	// resolved over HTTP/CLI) or "local_tty".
	Mode    string     `yaml:"mode"`
	Timeout Duration   `yaml:"timeout,omitempty"`
	TOTP    TOTPConfig `yaml:"totp"`
}

type TOTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SecretFile string `yaml:"secret_file,omitempty"`
}

type GuardConfig struct {
	WorkDir          string   `yaml:"work_dir,omitempty"`
	LocalSettingsDir string   `yaml:"local_settings_dir,omitempty"`
	GlobalConfigDir  string   `yaml:"global_config_dir,omitempty"`
	ProtectedPaths   []string `yaml:"protected_paths,omitempty"`

	// WriteTools names the file-write tools the guard applies to.
	WriteTools []string `yaml:"write_tools,omitempty"`
}

// Duration is a yaml-friendly time.Duration ("30s", "5m").
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be scalar")
	}
	dd, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:7466",
			Auth: AuthConfig{Type: "none", HeaderName: "X-API-Key"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Audit:   AuditConfig{Enabled: true, DBPath: "toolgate-audit.db", RetentionDays: 30},
		Approvals: ApprovalsConfig{
			Mode:    "api",
			Timeout: Duration{5 * time.Minute},
		},
		Guard: GuardConfig{
			LocalSettingsDir: ".toolgate",
			WriteTools:       []string{"edit_file", "write_file", "create_file"},
		},
	}
}

// Load reads and validates a config file, applying defaults for unset
// sections.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	switch c.Approvals.Mode {
	case "", "api", "local_tty":
	default:
		return fmt.Errorf("approvals.mode: unknown mode %q", c.Approvals.Mode)
	}
	switch c.Server.Auth.Type {
	case "", "none", "api_key":
	default:
		return fmt.Errorf("server.auth.type: unknown type %q", c.Server.Auth.Type)
	}
	if c.Server.Auth.Type == "api_key" && len(c.Server.Auth.Keys) == 0 && c.Server.Auth.KeysFile == "" {
		return fmt.Errorf("server.auth: api_key auth requires keys or keys_file")
	}
	if err := c.Permissions.Validate(); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	return nil
}

// LoadPermissions resolves the effective permission configuration:
// the separate permissions file when configured, else the inline rules.
func (c Config) LoadPermissions() (policy.PermissionConfig, error) {
	if c.PermissionsFile == "" {
		return c.Permissions, nil
	}
	return LoadPermissionsFile(c.PermissionsFile)
}

// LoadPermissionsFile reads a standalone permission rule file.
func LoadPermissionsFile(path string) (policy.PermissionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.PermissionConfig{}, fmt.Errorf("read permissions: %w", err)
	}
	var pc policy.PermissionConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return policy.PermissionConfig{}, fmt.Errorf("parse permissions: %w", err)
	}
	if err := pc.Validate(); err != nil {
		return policy.PermissionConfig{}, err
	}
	return pc, nil
}
