package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EnvHome overrides the default nativedep home directory.
	EnvHome = "NATIVEDEP_HOME"

	// EnvAPITimeout configures the per-request timeout for the release API.
	EnvAPITimeout = "NATIVEDEP_API_TIMEOUT"

	// EnvDownloadTimeout configures the timeout for a single asset download.
	EnvDownloadTimeout = "NATIVEDEP_DOWNLOAD_TIMEOUT"

	// EnvAPIBase overrides the release API host (GitHub Enterprise, mirrors, tests).
	EnvAPIBase = "NATIVEDEP_API_BASE"

	// EnvRetryDelay configures the delay before the single network retry.
	EnvRetryDelay = "NATIVEDEP_RETRY_DELAY"

	// EnvGitHubToken enables authenticated release API requests.
	EnvGitHubToken = "GITHUB_TOKEN"

	// DefaultAPITimeout is the default timeout for release API requests.
	DefaultAPITimeout = 30 * time.Second

	// DefaultDownloadTimeout is the default timeout for an asset download.
	DefaultDownloadTimeout = 10 * time.Minute

	// DefaultRetryDelay is the default delay before retrying a network operation.
	DefaultRetryDelay = 2 * time.Second

	// DefaultAPIBase is the public GitHub REST API.
	DefaultAPIBase = "https://api.github.com"
)

// GetAPITimeout returns the configured API timeout from NATIVEDEP_API_TIMEOUT.
// If not set or invalid, returns DefaultAPITimeout. Clamped to 1s..10m.
func GetAPITimeout() time.Duration {
	return durationFromEnv(EnvAPITimeout, DefaultAPITimeout, time.Second, 10*time.Minute)
}

// GetDownloadTimeout returns the configured download timeout from
// NATIVEDEP_DOWNLOAD_TIMEOUT. Clamped to 10s..1h.
func GetDownloadTimeout() time.Duration {
	return durationFromEnv(EnvDownloadTimeout, DefaultDownloadTimeout, 10*time.Second, time.Hour)
}

// GetRetryDelay returns the configured retry delay from NATIVEDEP_RETRY_DELAY.
// Zero is allowed and disables the wait. Clamped to at most 1m.
func GetRetryDelay() time.Duration {
	return durationFromEnv(EnvRetryDelay, DefaultRetryDelay, 0, time.Minute)
}

// GetAPIBase returns the release API base URL without a trailing slash.
func GetAPIBase() string {
	base := strings.TrimSpace(os.Getenv(EnvAPIBase))
	if base == "" {
		return DefaultAPIBase
	}
	return strings.TrimRight(base, "/")
}

// GetGitHubToken returns the token used to authenticate release API calls,
// or the empty string for anonymous access.
func GetGitHubToken() string {
	return strings.TrimSpace(os.Getenv(EnvGitHubToken))
}

func durationFromEnv(key string, def, min, max time.Duration) time.Duration {
	envValue := os.Getenv(key)
	if envValue == "" {
		return def
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			key, envValue, def)
		return def
	}

	if duration < min {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n",
			key, duration, min)
		return min
	}
	if duration > max {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n",
			key, duration, max)
		return max
	}

	return duration
}

// Config holds the per-user locations nativedep owns. The install root
// itself is not here: it is system-wide and comes from the TOML profile.
type Config struct {
	HomeDir    string // $NATIVEDEP_HOME
	StateFile  string // $NATIVEDEP_HOME/state.json
	LockFile   string // $NATIVEDEP_HOME/nativedep.lock
	ConfigFile string // $NATIVEDEP_HOME/config.toml
}

// DefaultConfig returns the default configuration.
func DefaultConfig() (*Config, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, ".nativedep")
	}
	return NewConfig(home), nil
}

// NewConfig builds a Config rooted at home.
func NewConfig(home string) *Config {
	return &Config{
		HomeDir:    home,
		StateFile:  filepath.Join(home, "state.json"),
		LockFile:   filepath.Join(home, "nativedep.lock"),
		ConfigFile: filepath.Join(home, "config.toml"),
	}
}

// EnsureDirectories creates the home directory if needed.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.HomeDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.HomeDir, err)
	}
	return nil
}
