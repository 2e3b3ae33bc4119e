package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pantry/internal/activity"
	"github.com/roach88/pantry/internal/hierarchy"
	"github.com/roach88/pantry/internal/lookup"
)

//go:embed schema.cue
var schemaCUE string

// EnvPath names the environment variable holding the config file path.
const EnvPath = "PANTRY_CONFIG"

// ErrInvalid is returned for a configuration that fails validation.
var ErrInvalid = errors.New("invalid config")

// Config is the complete pantry configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Logging   LoggingConfig   `yaml:"logging"`
	Hierarchy HierarchyConfig `yaml:"hierarchy"`
	Activity  ActivityConfig  `yaml:"activity"`
	Lookup    LookupConfig    `yaml:"lookup"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HierarchyConfig holds storage hierarchy configuration
type HierarchyConfig struct {
	SeedRooms        []string `yaml:"seed_rooms"`
	RejectDuplicates bool     `yaml:"reject_duplicates"`
}

// ActivityConfig holds activity log configuration
type ActivityConfig struct {
	RetentionDays int `yaml:"retention_days"`
	RecentLimit   int `yaml:"recent_limit"`
}

// LookupConfig holds product lookup configuration
type LookupConfig struct {
	BaseURL string        `yaml:"base_url"`
	Locale  string        `yaml:"locale"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Hierarchy: HierarchyConfig{
			SeedRooms: append([]string(nil), hierarchy.DefaultRooms...),
		},
		Activity: ActivityConfig{
			RetentionDays: activity.DefaultRetentionDays,
			RecentLimit:   activity.DefaultRecentLimit,
		},
		Lookup: LookupConfig{
			BaseURL:    lookup.DefaultBaseURL,
			Locale:     lookup.DefaultLocale,
			Timeout:    lookup.DefaultTimeout,
			TimeoutRaw: lookup.DefaultTimeout.String(),
		},
	}
}

// ResolvePath returns the config file to load: flagPath when set, else
// $PANTRY_CONFIG, else config.yaml in the user config directory.
// explicit reports whether the path was requested rather than defaulted.
func ResolvePath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, "pantry", "config.yaml"), false
}

// Load reads the file at path over Default. A missing file is an error
// only when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over Default.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expanded := []byte(expandEnvVars(string(data)))

	var doc any
	if err := yaml.Unmarshal(expanded, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// validateSchema checks doc against the embedded #Config definition.
func validateSchema(doc any) error {
	if doc == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func parseDurations(cfg *Config) error {
	if cfg.Lookup.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Lookup.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing lookup.timeout %q: %w", cfg.Lookup.TimeoutRaw, err)
		}
		cfg.Lookup.Timeout = d
	}
	return nil
}

// Validate checks the fields the schema cannot.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	if c.Lookup.Timeout <= 0 {
		return fmt.Errorf("%w: lookup.timeout must be positive", ErrInvalid)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pantry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pantry")
	}
	return filepath.Join(home, ".local", "share", "pantry")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
