package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Player contains configuration for the noise workload.
type Player struct {
	Binary string `toml:"binary"`
	// Color selects the generated noise spectrum (white, pink, brown, blue, violet, velvet).
	Color string `toml:"color"`
	// Source plays a looped audio file instead of generated noise when set.
	Source string `toml:"source"`
}

// Paths contains file and directory locations.
type Paths struct {
	PIDFile  string `toml:"pid_file"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for noiseplayer.
//
// Only volume is commonly set; the remaining sections fall back to defaults
// when absent.
type Config struct {
	Volume  float64 `toml:"volume"`
	Player  Player  `toml:"player"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if dir, err := os.UserConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, "noiseplayer", "config.toml"), nil
	}
	return expandPath("~/.config/noiseplayer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error; defaults are used.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, resolvedPath, false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, resolvedPath, true, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolvedPath, exists, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, resolvedPath, exists, err
	}

	return &cfg, resolvedPath, exists, nil
}

// ErrNotFound is reported by LoadOrDefault when no settings file exists.
var ErrNotFound = errors.New("config file not found")

// LoadOrDefault behaves like Load but never fails: when the file is missing or
// cannot be read, parsed, or validated the normalized defaults are returned
// together with the error so the caller can report it.
func LoadOrDefault(path string) (*Config, string, error) {
	cfg, resolved, exists, err := Load(path)
	if err == nil {
		if !exists {
			return cfg, resolved, fmt.Errorf("%w at %s", ErrNotFound, resolved)
		}
		return cfg, resolved, nil
	}
	fallback := Default()
	if normErr := fallback.normalize(); normErr != nil {
		err = errors.Join(err, normErr)
	}
	return &fallback, resolved, err
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("noiseplayer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and the pid file's parent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, filepath.Dir(c.Paths.PIDFile)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PlayerBinary returns the player executable name.
func (c *Config) PlayerBinary() string {
	if binary := strings.TrimSpace(c.Player.Binary); binary != "" {
		return binary
	}
	return defaultPlayerBinary
}

// DaemonLogPath is where the detached daemon's stdout and stderr are appended.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.StateDir, "daemon.log")
}

// HistoryPath is the lifecycle journal database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// DefaultPIDFile returns the well-known pid file location: the user's runtime
// directory when XDG_RUNTIME_DIR is set, the system temp directory otherwise.
func DefaultPIDFile() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, pidFileName)
	}
	return filepath.Join(os.TempDir(), pidFileName)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "noiseplayer")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/noiseplayer"
	}
	return filepath.Join(home, ".local", "state", "noiseplayer")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
