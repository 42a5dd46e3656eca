// Package config reads tlcut settings from the environment. A .env file in the
// working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort         = 8790
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultDataDir      = ".tlcut"
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000

	EnvFFmpeg       = "TLCUT_FFMPEG"
	EnvFFprobe      = "TLCUT_FFPROBE"
	EnvDataDir      = "TLCUT_DATA_DIR"
	EnvLogLevel     = "TLCUT_LOG_LEVEL"
	EnvLogFormat    = "TLCUT_LOG_FORMAT"
	EnvHistoryLimit = "TLCUT_HISTORY_LIMIT"
	EnvPort         = "TLCUT_PORT"
	EnvThreads      = "TLCUT_THREADS"

	DBFilename    = "tlcut.db"
	TokenFilename = "api-token"
)

type Config struct {
	FFmpegPath   string
	FFprobePath  string
	DataDir      string
	LogLevel     string
	LogFormat    string
	HistoryLimit int
	Port         int
	// Threads is the encoder thread cap; 0 picks one per physical core.
	Threads int
}

// DBPath is the export log database inside dataDir.
func DBPath(dataDir string) string { return filepath.Join(dataDir, DBFilename) }

// ExportsDir is where exports land when no output path is given.
func ExportsDir(dataDir string) string { return filepath.Join(dataDir, "exports") }

// TokenPath holds the bearer token of the local API.
func TokenPath(dataDir string) string { return filepath.Join(dataDir, TokenFilename) }

// Load applies .env (best-effort) and then the environment over the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		DataDir:      defaultDataDir(),
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		HistoryLimit: DefaultHistoryLimit,
		Port:         DefaultPort,
	}
	if v := os.Getenv(EnvFFmpeg); v != "" {
		cfg.FFmpegPath = v
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		cfg.FFprobePath = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		v = strings.ToLower(v)
		if v != "text" && v != "json" {
			return Config{}, fmt.Errorf("invalid %s: %q is not text or json", EnvLogFormat, v)
		}
		cfg.LogFormat = v
	}

	var err error
	if cfg.HistoryLimit, err = intEnv(EnvHistoryLimit, cfg.HistoryLimit, 1, MaxHistoryLimit); err != nil {
		return Config{}, err
	}
	if cfg.Port, err = intEnv(EnvPort, cfg.Port, 1, 65535); err != nil {
		return Config{}, err
	}
	if cfg.Threads, err = intEnv(EnvThreads, 0, 0, 256); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func intEnv(key string, def, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
