package config

import (
	"time"

	"github.com/saimizi/iviplugind/internal/bytesize"
)

const defaultShutdownTimeout = 5 * time.Second

// ApplyDefaults fills in zero-valued fields with sensible defaults. Load
// calls it before reading the config file and environment variables, so
// values from those sources replace the defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/tmp/weston-ivi-controller.sock"
	}
	if cfg.OutboxCapacity <= 0 {
		cfg.OutboxCapacity = 100
	}
	if cfg.AuditLogCapacity == 0 {
		cfg.AuditLogCapacity = 1000
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "/tmp/iviplugind-audit.db"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = bytesize.ByteSize(64 * bytesize.MiB)
	}

	applyLoggingDefaults(&cfg.Logging)
	applyDiagnosticsDefaults(&cfg.Diagnostics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyDiagnosticsDefaults(cfg *DiagnosticsConfig) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9090"
	}
}

// GetDefaultConfig returns a fully populated Config using only defaults, for
// use when no config file is present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
