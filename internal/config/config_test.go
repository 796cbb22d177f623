package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FirstRunCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "eventcal.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultRaidHourPlaceholder, cfg.RaidHourPlaceholder)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Empty(t, cfg.RefreshCron)
	assert.Empty(t, cfg.Listen)
	assert.Equal(t, DefaultCalendars(), cfg.Calendars)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_DefaultCalendarsAreTheCuratedGroups(t *testing.T) {
	cals := DefaultCalendars()
	require.Len(t, cals, 4)

	files := make([]string, 0, len(cals))
	for _, c := range cals {
		files = append(files, c.File)
	}
	assert.Equal(t, []string{"communityDays", "raids", "spotlightHours", "otherMajorEvents"}, files)
	assert.Equal(t, []string{"raid-hour", "raid-day", "raid-battles", "raid-weekend", "elite-raids"}, cals[1].Categories)
	assert.Equal(t, []string{"pokemon-go-fest", "wild-area"}, cals[3].Categories)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", `
feed_url: https://example.com/events.json
output_dir: /tmp/out
timezone: UTC
fetch_timeout: 5s
refresh: "0 */6 * * *"
listen: 127.0.0.1:9000
log_level: DEBUG
calendars:
  - file: raids
    categories: [raid-hour, raid-day]
basic_auth:
  username: u
  password: p
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/events.json", cfg.FeedURL)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "0 */6 * * *", cfg.RefreshCron)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Calendars, 1)
	assert.Equal(t, "raids", cfg.Calendars[0].Name, "name defaults to file")
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "u", cfg.BasicAuth.Username)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", "output_dir: ./from-file\n")
	t.Setenv("EVENTCAL_OUTPUT_DIR", "/srv/calendars")
	t.Setenv("EVENTCAL_FETCH_TIMEOUT", "12s")
	t.Setenv("EVENTCAL_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/calendars", cfg.OutputDir)
	assert.Equal(t, 12*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DefaultCalendars(), cfg.Calendars)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", "calendars: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"overlapping categories", func(c *Config) {
			c.Calendars = append(c.Calendars, CalendarConfig{File: "extra", Categories: []string{"raid-day"}})
		}, `category "raid-day"`},
		{"duplicate file", func(c *Config) {
			c.Calendars = append(c.Calendars, CalendarConfig{File: "raids", Categories: []string{"event"}})
		}, `"raids" listed twice`},
		{"file with path separator", func(c *Config) {
			c.Calendars[0].File = "../escape"
		}, "File"},
		{"empty categories", func(c *Config) {
			c.Calendars[0].Categories = nil
		}, "Categories"},
		{"bad feed url", func(c *Config) { c.FeedURL = "not a url" }, "FeedURL"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad listen", func(c *Config) { c.Listen = "nope" }, "Listen"},
		{"bad refresh", func(c *Config) { c.RefreshCron = "every tuesday" }, "refresh"},
		{"cron refresh", func(c *Config) { c.RefreshCron = "0 */6 * * *" }, ""},
		{"descriptor refresh", func(c *Config) { c.RefreshCron = "@every 30m" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := &Config{BasicAuth: &BasicAuthConfig{}}
	cfg.Normalize()

	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
	assert.Equal(t, DefaultSourceLabel, cfg.SourceLabel)
	assert.Equal(t, DefaultProductID, cfg.ProductID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Nil(t, cfg.BasicAuth, "empty credentials disable auth")
	assert.Len(t, cfg.Calendars, 4)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := DefaultConfig()
	cfg.RefreshCron = "@hourly"
	cfg.FetchTimeout = 45 * time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@hourly", loaded.RefreshCron)
	assert.Equal(t, 45*time.Second, loaded.FetchTimeout)
	assert.Equal(t, cfg.Calendars, loaded.Calendars)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
