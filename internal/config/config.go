// Package config provides configuration management for the BatchClipFlow agent.
// Configuration is loaded from environment variables with sensible defaults.
// A .env file in the working directory is honoured before the real environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8878
	DefaultLogLevel = "info"
	DefaultDataDir  = ".batchclipflow"

	// Environment variable names
	EnvPort       = "BATCHCLIP_PORT"
	EnvLogLevel   = "BATCHCLIP_LOG_LEVEL"
	EnvDataDir    = "BATCHCLIP_DATA_DIR"
	EnvFFmpegPath = "BATCHCLIP_FFMPEG_PATH"
	EnvHeadless   = "BATCHCLIP_HEADLESS"
	EnvTimeout    = "BATCHCLIP_CLIP_TIMEOUT_S"

	// Database filename
	DBFilename = "batchclipflow.db"

	// Default project document filename, used when the pointer file is
	// missing or points at a file that no longer exists.
	DefaultProjectFilename = "project.json"

	// Pointer file recording the last opened project document.
	SessionFilename = "session.json"

	// Per-clip transcode timeout. Stream-copy trims are I/O bound, so even
	// very long clips finish well inside this.
	DefaultClipTimeoutS = 1800
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	DefaultProjectPath() string
	SessionPath() string
	FFmpegPath() string
	Headless() bool
	ClipTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	ffmpegPath   string
	headless     bool
	clipTimeoutS int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		clipTimeoutS: DefaultClipTimeoutS,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if t := os.Getenv(EnvTimeout); t != "" {
		timeout, err := strconv.Atoi(t)
		if err != nil || timeout < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvTimeout)
		}
		cfg.clipTimeoutS = timeout
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// DefaultProjectPath returns the fallback project document path
func (c *EnvConfig) DefaultProjectPath() string {
	return filepath.Join(c.dataDir, DefaultProjectFilename)
}

// SessionPath returns the path of the last-opened pointer file
func (c *EnvConfig) SessionPath() string {
	return filepath.Join(c.dataDir, SessionFilename)
}

// FFmpegPath returns the configured ffmpeg binary path, empty for auto-detect
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// ClipTimeout returns the per-clip transcode timeout
func (c *EnvConfig) ClipTimeout() time.Duration {
	return time.Duration(c.clipTimeoutS) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
