// Package config loads and validates runner configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runner configuration.
type Config struct {
	// Platform settings.
	CallbackURL  string // JSON-RPC callback service that registers reports.
	AuthToken    string
	BlobStoreURL string

	// Tool settings.
	ScratchDir     string // Parent of per-run working and staging directories.
	ToolBinary     string
	DataDir        string
	ToolTimeout    time.Duration
	MaxOutputBytes int

	// Signing settings. An empty key path disables signing.
	SigningKeyPath    string
	SigningPassphrase string

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	LogLevel string
}

// Defaults for optional settings.
const (
	DefaultScratchDir     = "/kb/module/work/tmp"
	DefaultToolBinary     = "wrapper_phage_contigs_sorter_iPlant.pl"
	DefaultDataDir        = "/data/virsorter-data"
	DefaultToolTimeout    = 12 * time.Hour
	DefaultMaxOutputBytes = 8 << 20
	DefaultServiceName    = "virsorter-runner"
)

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var errs []error

	timeout, err := envDuration("VIRSORTER_TIMEOUT", DefaultToolTimeout)
	errs = append(errs, err)
	maxOutput, err := envInt("VIRSORTER_MAX_OUTPUT_BYTES", DefaultMaxOutputBytes)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	cfg := Config{
		CallbackURL:       envStr("SDK_CALLBACK_URL", ""),
		AuthToken:         envStr("KB_AUTH_TOKEN", ""),
		BlobStoreURL:      envStr("BLOB_STORE_URL", ""),
		ScratchDir:        envStr("VIRSORTER_SCRATCH", DefaultScratchDir),
		ToolBinary:        envStr("VIRSORTER_BIN", DefaultToolBinary),
		DataDir:           envStr("VIRSORTER_DATA_DIR", DefaultDataDir),
		ToolTimeout:       timeout,
		MaxOutputBytes:    maxOutput,
		SigningKeyPath:    envStr("VIRSORTER_SIGNING_KEY", ""),
		SigningPassphrase: envStr("VIRSORTER_SIGNING_PASSPHRASE", ""),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", DefaultServiceName),
		LogLevel:          envStr("VIRSORTER_LOG_LEVEL", "info"),
	}

	// the tool runs in a per-run directory, so relative paths must be pinned to ours
	if cfg.DataDir, err = absPath(cfg.DataDir); err != nil {
		return Config{}, err
	}
	if strings.ContainsRune(cfg.ToolBinary, '/') || strings.ContainsRune(cfg.ToolBinary, filepath.Separator) {
		if cfg.ToolBinary, err = absPath(cfg.ToolBinary); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings every command relies on.
func (c Config) Validate() error {
	if c.ScratchDir == "" {
		return fmt.Errorf("config: VIRSORTER_SCRATCH must not be empty")
	}
	if c.ToolBinary == "" {
		return fmt.Errorf("config: VIRSORTER_BIN must not be empty")
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("config: VIRSORTER_TIMEOUT must be positive")
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("config: VIRSORTER_MAX_OUTPUT_BYTES must be positive")
	}
	return nil
}

// ValidateForPublish checks the settings needed to upload and register a report.
func (c Config) ValidateForPublish() error {
	var errs []error
	if c.CallbackURL == "" {
		errs = append(errs, fmt.Errorf("config: SDK_CALLBACK_URL is required"))
	}
	if c.AuthToken == "" {
		errs = append(errs, fmt.Errorf("config: KB_AUTH_TOKEN is required"))
	}
	if c.BlobStoreURL == "" {
		errs = append(errs, fmt.Errorf("config: BLOB_STORE_URL is required"))
	}
	return errors.Join(errs...)
}

// SigningEnabled reports whether report packages should be signed.
func (c Config) SigningEnabled() bool {
	return c.SigningKeyPath != ""
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}

func absPath(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("config: cannot resolve %q: %w", path, err)
	}
	return abs, nil
}
