package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/Makepad-fr/tadalive/internal/logging"
)

var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigFileNotFound = errors.New("config file not found")
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Backend      string `json:"backend,omitempty"`
	DataDir      string `json:"data_dir,omitempty"`
	AuthDir      string `json:"auth_dir,omitempty"`
	Collection   string `json:"collection,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	Theme        string `json:"theme,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`
	LogFile      string `json:"log_file,omitempty"`

	// Resolved (computed, not serialized)
	Poll    time.Duration `json:"-"`
	Sources Sources       `json:"-"`
}

// Sources tracks which config files were loaded (for diagnostics).
type Sources struct {
	Global   string
	Project  string
	Explicit string
}

// ConfigFileName is the project config file name.
const ConfigFileName = ".tada.json"

// Default returns the built-in configuration rooted at home.
func Default(home string) Config {
	return Config{
		Backend:      BackendSQLite,
		DataDir:      filepath.Join(home, ".tada", "data"),
		AuthDir:      filepath.Join(home, ".tada"),
		Collection:   "todos",
		PollInterval: "500ms",
		Theme:        "classic",
		LogLevel:     "warn",
	}
}

// Overrides come from command-line flags; empty fields are ignored.
type Overrides struct {
	Backend  string
	DataDir  string
	Theme    string
	LogLevel string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // if empty, os.Getwd() is used
	ConfigPath string            // --config flag value
	Env        map[string]string // environment variables
	Overrides  Overrides
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/tada/config.json or ~/.config/tada/config.json)
// 3. Project config (.tada.json in the working directory)
// 4. Explicit config file (--config)
// 5. Environment (TADA_*)
// 6. Flags.
func Load(in LoadInput) (Config, error) {
	workDir := in.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("getwd: %w", err)
		}
		workDir = wd
	}

	cfg := Default(in.Env["HOME"])

	if p := globalConfigPath(in.Env); p != "" {
		fileCfg, loaded, err := loadFile(p, false)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = merge(cfg, fileCfg)
			cfg.Sources.Global = p
		}
	}

	projectPath := filepath.Join(workDir, ConfigFileName)
	fileCfg, loaded, err := loadFile(projectPath, false)
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg = merge(cfg, fileCfg)
		cfg.Sources.Project = projectPath
	}

	if in.ConfigPath != "" {
		p := in.ConfigPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(workDir, p)
		}
		fileCfg, _, err := loadFile(p, true)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
		cfg.Sources.Explicit = p
	}

	cfg = merge(cfg, Config{
		Backend:      in.Env["TADA_BACKEND"],
		DataDir:      in.Env["TADA_DATA_DIR"],
		AuthDir:      in.Env["TADA_AUTH_DIR"],
		Collection:   in.Env["TADA_COLLECTION"],
		PollInterval: in.Env["TADA_POLL_INTERVAL"],
		Theme:        in.Env["TADA_THEME"],
		LogLevel:     in.Env["TADA_LOG_LEVEL"],
		LogFile:      in.Env["TADA_LOG_FILE"],
	})
	cfg = merge(cfg, Config{
		Backend:  in.Overrides.Backend,
		DataDir:  in.Overrides.DataDir,
		Theme:    in.Overrides.Theme,
		LogLevel: in.Overrides.LogLevel,
	})

	if err := validate(&cfg, workDir); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return cfg, nil
}

// EnvMap snapshots the process environment.
func EnvMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	if env["HOME"] == "" {
		if home, err := os.UserHomeDir(); err == nil {
			env["HOME"] = home
		}
	}
	return env
}

func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "tada", "config.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "tada", "config.json")
	}
	return ""
}

// loadFile reads a HuJSON config file. Missing files are fine unless
// mustExist is set.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	dec := json.NewDecoder(strings.NewReader(string(standardized)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}
	if overlay.AuthDir != "" {
		base.AuthDir = overlay.AuthDir
	}
	if overlay.Collection != "" {
		base.Collection = overlay.Collection
	}
	if overlay.PollInterval != "" {
		base.PollInterval = overlay.PollInterval
	}
	if overlay.Theme != "" {
		base.Theme = overlay.Theme
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}
	return base
}

func validate(cfg *Config, workDir string) error {
	switch cfg.Backend {
	case BackendSQLite, BackendJSON:
	default:
		return fmt.Errorf("backend %q: want %s or %s", cfg.Backend, BackendSQLite, BackendJSON)
	}
	switch cfg.Theme {
	case "classic", "neon", "mono":
	default:
		return fmt.Errorf("theme %q: want classic, neon or mono", cfg.Theme)
	}
	if _, _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.Collection == "" {
		return errors.New("collection is empty")
	}

	d, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("poll_interval: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("poll_interval %s is negative", d)
	}
	cfg.Poll = d

	if cfg.DataDir == "" || cfg.AuthDir == "" {
		return errors.New("data_dir and auth_dir must be set")
	}
	for _, p := range []*string{&cfg.DataDir, &cfg.AuthDir, &cfg.LogFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(workDir, *p)
		}
	}
	return nil
}
