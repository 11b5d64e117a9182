package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvListen         = "CASELOAD_LISTEN"
	EnvDatabaseDriver = "CASELOAD_DATABASE_DRIVER"
	EnvDatabaseDSN    = "CASELOAD_DATABASE_DSN"
	EnvLogLevel       = "CASELOAD_LOG_LEVEL"
)

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" json:"-" validate:"required"`
	// Debug logs every SQL statement.
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// NotesConfig holds note rendering defaults; requests may override them.
type NotesConfig struct {
	UseSpecificTimes bool `yaml:"use_specific_times" json:"use_specific_times"`
}

// FeedConfig controls the published schedule calendar.
type FeedConfig struct {
	// HorizonDays is how many days ahead the feed projects by default.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" validate:"min=1,max=366"`
	// CacheSeconds is how long a rendered feed is served from memory.
	CacheSeconds int    `yaml:"cache_seconds" json:"cache_seconds" validate:"min=0"`
	Name         string `yaml:"name,omitempty" json:"name,omitempty"`
}

// CalendarConfig is one subscribed closure calendar.
type CalendarConfig struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"-" validate:"required,url"`
}

// ClosuresConfig lists district calendars whose events close school for the
// day. Projected sessions are not scheduled on those days.
type ClosuresConfig struct {
	RefreshMinutes int              `yaml:"refresh_minutes" json:"refresh_minutes" validate:"min=1"`
	CacheDir       string           `yaml:"cache_dir" json:"cache_dir"`
	Calendars      []CalendarConfig `yaml:"calendars" json:"calendars" validate:"dive"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	// Mode "production" switches to JSON output.
	Mode string `yaml:"mode" json:"mode" validate:"oneof=development production"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"-" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone calendar dates are interpreted in; "Local"
	// uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Notes    NotesConfig    `yaml:"notes" json:"notes"`
	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Closures ClosuresConfig `yaml:"closures" json:"closures"`
	Log      LogConfig      `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "Local",
		Database: DatabaseConfig{Driver: "sqlite", DSN: "caseload.db"},
		Feed:     FeedConfig{HorizonDays: 28, CacheSeconds: 300},
		Closures: ClosuresConfig{RefreshMinutes: 360, Calendars: []CalendarConfig{}},
		Log:      LogConfig{Level: "info", Mode: "development"},
	}
}

// Normalize fills zero values with defaults so older or partial files keep
// working.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" && c.Database.Driver == def.Database.Driver {
		c.Database.DSN = def.Database.DSN
	}
	if c.Feed.HorizonDays <= 0 {
		c.Feed.HorizonDays = def.Feed.HorizonDays
	}
	if c.Feed.CacheSeconds < 0 {
		c.Feed.CacheSeconds = 0
	}
	if c.Closures.RefreshMinutes <= 0 {
		c.Closures.RefreshMinutes = def.Closures.RefreshMinutes
	}
	if c.Closures.Calendars == nil {
		c.Closures.Calendars = []CalendarConfig{}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Mode == "" {
		c.Log.Mode = def.Log.Mode
	}
}

// Validate checks field constraints and that the timezone resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if _, err := c.Location(); err != nil {
		return errors.Wrapf(err, "invalid config: timezone %q", c.Timezone)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// On first run the default config is written to path (0600). A .env file
// next to the config is loaded into the process environment without
// overriding variables already set, then CASELOAD_* variables override
// file values. The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, errors.Wrap(err, "reading config")
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "loading .env")
	}
	cfg.applyEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDatabaseDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Save writes cfg to path atomically (temp file and rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating config dir")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	tmp, err := os.CreateTemp(dir, ".caseload-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
