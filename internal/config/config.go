// Package config loads and validates the iviplugind process configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (IVICTL_*)
//  3. Configuration file (JSON)
//  4. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/saimizi/iviplugind/internal/bytesize"
)

// Config is the top-level configuration for the iviplugind process.
//
// Dynamic, per-surface state lives entirely in the State Core at runtime;
// nothing about a live Wayland session is persisted here.
type Config struct {
	// SocketPath is the filesystem path of the UNIX domain socket the RPC
	// transport listens on. The parent directory must exist and be
	// writable; the socket itself is created and unlinked by the transport.
	SocketPath string `json:"socket_path"`

	// OutboxCapacity bounds the per-client notification outbox (spec.md
	// §4.5). Oldest queued notifications are dropped once a client's
	// outbox reaches this depth.
	OutboxCapacity int `json:"outbox_capacity"`

	// AuditLogCapacity bounds the durable notification ring (SPEC_FULL.md
	// §3). Zero disables the audit log entirely.
	AuditLogCapacity int `json:"audit_log_capacity"`

	// AuditLogPath is the file backing the embedded audit log. It is
	// erased and recreated on every process start.
	AuditLogPath string `json:"audit_log_path"`

	// ShutdownTimeout is defaulted and validated (it must be positive), but
	// teardown does not consult it: stopping the plugin closes client
	// connections without waiting for them to drain.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// MaxFrameSize is the largest accepted request frame, in bytes
	// (spec.md §4.6 default 64 MiB).
	MaxFrameSize bytesize.ByteSize `json:"max_frame_size"`

	// Logging controls log output behavior.
	Logging LoggingConfig `json:"logging"`

	// Diagnostics controls the read-only operator HTTP surface.
	Diagnostics DiagnosticsConfig `json:"diagnostics"`

	// Simulate runs the plugin against the in-process mock Layout
	// Capability instead of a real compositor, for local testing.
	Simulate bool `json:"simulate"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `json:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `json:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `json:"output"`
}

// DiagnosticsConfig controls the read-only HTTP diagnostics surface
// (/healthz, /metrics, /debug/state).
type DiagnosticsConfig struct {
	// Enabled controls whether the diagnostics HTTP server starts at all.
	Enabled bool `json:"enabled"`

	// Addr is the listen address for the diagnostics server, e.g.
	// "127.0.0.1:9090".
	Addr string `json:"addr"`
}

// Overrides carries the CLI-flag values that take precedence over
// everything else Load considers.
type Overrides struct {
	SocketPath string
	Simulate   bool
}

// Load reads configuration from an optional file, environment variables, and
// defaults, then applies overrides and validates the result.
//
// Precedence (highest to lowest): overrides (bound by the caller from CLI
// flags), environment variables (IVICTL_*), the config file, then defaults.
func Load(configPath string, overrides Overrides) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	path := configPath
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if err := readConfigFile(cfg, path, configPath != ""); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if overrides.SocketPath != "" {
		cfg.SocketPath = overrides.SocketPath
	}
	if overrides.Simulate {
		cfg.Simulate = true
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field invariants (a writable
// socket directory cannot be expressed as a simple field check).
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SocketPath == "" {
		errs = append(errs, "socket_path: required")
	}
	if cfg.OutboxCapacity <= 0 {
		errs = append(errs, "outbox_capacity: must be > 0")
	}
	if cfg.AuditLogCapacity < 0 {
		errs = append(errs, "audit_log_capacity: must be >= 0")
	}
	if cfg.AuditLogPath == "" {
		errs = append(errs, "audit_log_path: required")
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout: must be > 0")
	}
	if cfg.MaxFrameSize <= 0 {
		errs = append(errs, "max_frame_size: must be > 0")
	}

	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: must be one of text, json, got %q", cfg.Logging.Format))
	}
	if cfg.Logging.Output == "" {
		errs = append(errs, "logging.output: required")
	}

	if cfg.Diagnostics.Addr != "" {
		if _, _, err := splitHostPort(cfg.Diagnostics.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("diagnostics.addr: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	dir := filepath.Dir(cfg.SocketPath)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("socket_path directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("socket_path directory %q is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".iviplugind-probe-*")
	if err != nil {
		return fmt.Errorf("socket_path directory %q is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return nil
}

func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("missing port in address %q", addr)
	}
	host, port = addr[:idx], addr[idx+1:]
	if port == "" {
		return "", "", fmt.Errorf("missing port in address %q", addr)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("invalid port %q in address %q", port, addr)
	}
	return host, port, nil
}

// SaveConfig writes cfg to path in JSON form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// readConfigFile reads and merges a JSON config file at path into cfg. A
// missing file is only an error when the caller named it explicitly
// (required); an undiscovered default path is not an error since defaults
// cover every field.
func readConfigFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays IVICTL_* environment variables onto cfg, taking
// precedence over the file and defaults but not CLI overrides.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("IVICTL_SOCKET_PATH"); ok {
		cfg.SocketPath = v
	}
	if v, ok := envInt("IVICTL_OUTBOX_CAPACITY"); ok {
		cfg.OutboxCapacity = v
	}
	if v, ok := envInt("IVICTL_AUDIT_LOG_CAPACITY"); ok {
		cfg.AuditLogCapacity = v
	}
	if v, ok := os.LookupEnv("IVICTL_AUDIT_LOG_PATH"); ok {
		cfg.AuditLogPath = v
	}
	if v, ok := os.LookupEnv("IVICTL_SHUTDOWN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v, ok := os.LookupEnv("IVICTL_MAX_FRAME_SIZE"); ok {
		if bs, err := bytesize.ParseByteSize(v); err == nil {
			cfg.MaxFrameSize = bs
		}
	}
	if v, ok := os.LookupEnv("IVICTL_LOGGING_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("IVICTL_LOGGING_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv("IVICTL_LOGGING_OUTPUT"); ok {
		cfg.Logging.Output = v
	}
	if v, ok := envBool("IVICTL_DIAGNOSTICS_ENABLED"); ok {
		cfg.Diagnostics.Enabled = v
	}
	if v, ok := os.LookupEnv("IVICTL_DIAGNOSTICS_ADDR"); ok {
		cfg.Diagnostics.Addr = v
	}
	if v, ok := envBool("IVICTL_SIMULATE"); ok {
		cfg.Simulate = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// getConfigDir returns the configuration directory, honoring XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "iviplugind")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "iviplugind")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.json")
}
