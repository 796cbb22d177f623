package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned (wrapped) when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultFeedURL             = "https://raw.githubusercontent.com/bigfoott/ScrapedDuck/data/events.min.json"
	DefaultRaidHourPlaceholder = "https://leekduck.com/assets/img/events/raidhour.jpg"
	DefaultOutputDir           = "./calendars"
	DefaultSourceLabel         = "Leek Duck"
	DefaultProductID           = "eventcal"
	DefaultFetchTimeout        = 30 * time.Second

	envPrefix = "EVENTCAL"
)

// CalendarConfig maps a set of event categories to one output file.
type CalendarConfig struct {
	// File is the output file name without the .ics extension.
	File string `yaml:"file" mapstructure:"file" validate:"required,excludesall=/\\"`
	// Name is shown by calendar clients (X-WR-CALNAME). Defaults to File.
	Name string `yaml:"name" mapstructure:"name"`
	// Categories lists the event tags published in this file.
	Categories []string `yaml:"categories" mapstructure:"categories" validate:"required,min=1,dive,required"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the calendar server.
type BasicAuthConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// FeedURL is the JSON events feed.
	FeedURL string `yaml:"feed_url" mapstructure:"feed_url" validate:"required,url"`

	// OutputDir receives one .ics file per calendar.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir" validate:"required"`

	// Timezone is the IANA zone used to interpret wall-clock event times when
	// deciding weekdays and durations. Empty means the host's local zone.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`

	// RaidHourPlaceholder is the generic raid hour artwork; raid hours using
	// it get no HTML content.
	RaidHourPlaceholder string `yaml:"raid_hour_placeholder" mapstructure:"raid_hour_placeholder"`

	// SourceLabel is the link text of the back-link appended to HTML content.
	SourceLabel string `yaml:"source_label" mapstructure:"source_label"`

	// ProductID is used for PRODID.
	ProductID string `yaml:"product_id" mapstructure:"product_id"`

	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout" validate:"gt=0"`

	// RefreshCron is a cron-style schedule (e.g. "0 */6 * * *"). When empty
	// the program runs once and exits.
	RefreshCron string `yaml:"refresh" mapstructure:"refresh"`

	// Listen is the HTTP listen address for serving calendars in scheduled
	// mode. Empty disables the server.
	Listen string `yaml:"listen" mapstructure:"listen" validate:"omitempty,hostname_port"`

	// MetricsFile, if set, receives Prometheus text-format metrics after each run.
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`

	LogLevel  string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=json console"`

	Calendars []CalendarConfig `yaml:"calendars" mapstructure:"calendars" validate:"required,min=1,dive"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" mapstructure:"basic_auth"`
}

// DefaultCalendars returns the curated category groups.
func DefaultCalendars() []CalendarConfig {
	return []CalendarConfig{
		{File: "communityDays", Name: "Community Days", Categories: []string{"community-day"}},
		{File: "raids", Name: "Raids", Categories: []string{"raid-hour", "raid-day", "raid-battles", "raid-weekend", "elite-raids"}},
		{File: "spotlightHours", Name: "Spotlight Hours", Categories: []string{"pokemon-spotlight-hour"}},
		{File: "otherMajorEvents", Name: "Other Major Events", Categories: []string{"pokemon-go-fest", "wild-area"}},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:             DefaultFeedURL,
		OutputDir:           DefaultOutputDir,
		RaidHourPlaceholder: DefaultRaidHourPlaceholder,
		SourceLabel:         DefaultSourceLabel,
		ProductID:           DefaultProductID,
		FetchTimeout:        DefaultFetchTimeout,
		LogLevel:            "info",
		LogFormat:           "console",
		Calendars:           DefaultCalendars(),
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.FeedURL == "" {
		c.FeedURL = DefaultFeedURL
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.RaidHourPlaceholder == "" {
		c.RaidHourPlaceholder = DefaultRaidHourPlaceholder
	}
	if c.SourceLabel == "" {
		c.SourceLabel = DefaultSourceLabel
	}
	if c.ProductID == "" {
		c.ProductID = DefaultProductID
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if len(c.Calendars) == 0 {
		c.Calendars = DefaultCalendars()
	}
	for i := range c.Calendars {
		if c.Calendars[i].Name == "" {
			c.Calendars[i].Name = c.Calendars[i].File
		}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

var validate = validator.New()

// Validate checks field constraints and that no category is published in
// more than one calendar file.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("%w: refresh %q: %v", ErrInvalid, c.RefreshCron, err)
		}
	}

	files := make(map[string]bool, len(c.Calendars))
	owner := make(map[string]string)
	for _, cal := range c.Calendars {
		if files[cal.File] {
			return fmt.Errorf("%w: calendar file %q listed twice", ErrInvalid, cal.File)
		}
		files[cal.File] = true
		for _, cat := range cal.Categories {
			if prev, ok := owner[cat]; ok {
				return fmt.Errorf("%w: category %q mapped to both %q and %q", ErrInvalid, cat, prev, cal.File)
			}
			owner[cat] = cal.File
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A .env file in the working directory is loaded into the environment.
//   - If the file does not exist, a default config is written there (0600).
//   - EVENTCAL_* environment variables override file values
//     (e.g. EVENTCAL_OUTPUT_DIR, EVENTCAL_FEED_URL).
//   - The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	_ = godotenv.Load()

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override keys
// that are absent from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("feed_url", d.FeedURL)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("raid_hour_placeholder", d.RaidHourPlaceholder)
	v.SetDefault("source_label", d.SourceLabel)
	v.SetDefault("product_id", d.ProductID)
	v.SetDefault("fetch_timeout", d.FetchTimeout)
	v.SetDefault("refresh", d.RefreshCron)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
