package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	EnvLogPath     = "DAP_LOG_PATH"
	DefaultLogPath = ".textdap-logs/dap_io.log"
)

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Limits      LimitsConfig      `toml:"limits"`
	Security    SecurityConfig    `toml:"security"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

type ServerConfig struct {
	Stdio     bool   `toml:"stdio"`
	TCPListen string `toml:"tcp_listen"`
	WSListen  string `toml:"ws_listen"`
	WSPath    string `toml:"ws_path"`
	LogLevel  string `toml:"log_level"`
}

type LimitsConfig struct {
	MaxSourceBytes        int `toml:"max_source_bytes"`
	MaxFrameBytes         int `toml:"max_frame_bytes"`
	MaxConcurrentSessions int `toml:"max_concurrent_sessions"`
}

type SecurityConfig struct {
	AllowedRoot []AllowedRoot `toml:"allowed_roots"`
}

type AllowedRoot struct {
	Path string `toml:"path"`
}

type DiagnosticsConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	Stderr       bool   `toml:"stderr"`
	MirrorOutput bool   `toml:"mirror_output"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Stdio:    true,
			WSPath:   "/dap",
			LogLevel: "info",
		},
		Limits: LimitsConfig{
			MaxSourceBytes:        8 << 20,
			MaxFrameBytes:         10 << 20,
			MaxConcurrentSessions: 16,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:      true,
			Path:         DefaultLogPath,
			Stderr:       true,
			MirrorOutput: true,
		},
	}
}

// Load reads the TOML file at path on top of Default. A missing file is not
// an error. DAP_LOG_PATH, when set, wins over diagnostics.path.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if p := os.Getenv(EnvLogPath); p != "" {
		cfg.Diagnostics.Path = p
	}
	if !filepath.IsAbs(cfg.Diagnostics.Path) && cfg.Diagnostics.Path != "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Diagnostics.Path = filepath.Join(wd, cfg.Diagnostics.Path)
		}
	}
	return cfg, nil
}

func AllowedRoots(cfg Config) []string {
	roots := make([]string, 0, len(cfg.Security.AllowedRoot))
	for _, r := range cfg.Security.AllowedRoot {
		if r.Path != "" {
			roots = append(roots, r.Path)
		}
	}
	return roots
}

// LogLevel maps server.log_level to a slog level, defaulting to info.
func LogLevel(cfg Config) slog.Level {
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
