package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full configuration surface of the sync service, loaded from
// a YAML file with environment variable overrides.
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"production"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Toggl struct {
		APIToken string `yaml:"api_token" env:"TOGGL_API_TOKEN"`
		BaseURL  string `yaml:"base_url" env-default:"https://api.track.toggl.com/api/v8"`
		Timeout  int    `yaml:"timeout" env-default:"30"` // seconds
	} `yaml:"toggl"`

	Storage struct {
		Path string `yaml:"path" env:"STORAGE_PATH" env-default:"toggl_record.db"`
	} `yaml:"storage"`

	// TimeZone is the zone the START/STOP/TIMESTAMP columns are localized to.
	TimeZone string `yaml:"time_zone" env:"TIME_ZONE" env-default:"UTC"`

	// Calendars maps Toggl workspace names to the calendar each workspace's
	// entries are mirrored into.
	Calendars []CalendarMapping `yaml:"calendars"`

	Google struct {
		CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
		AccessToken     string `yaml:"access_token" env:"GOOGLE_ACCESS_TOKEN"`
	} `yaml:"google"`

	AutoTag struct {
		// WorkspaceID limits auto-tagging to one workspace; nil tags all.
		WorkspaceID *int64   `yaml:"workspace_id"`
		Tags        []string `yaml:"tags"`
	} `yaml:"auto_tag"`

	Sync struct {
		Interval int `yaml:"interval" env-default:"600"` // seconds between periodic runs
	} `yaml:"sync"`

	Notify struct {
		// URLs are shoutrrr service URLs (e.g. smtp://...) for out-of-band
		// failure notifications.
		URLs  []string `yaml:"urls"`
		Actor string   `yaml:"actor" env-default:"toggl-sync"`
	} `yaml:"notify"`
}

// CalendarMapping binds one workspace name to a calendar ID.
type CalendarMapping struct {
	Workspace  string `yaml:"workspace"`
	CalendarID string `yaml:"calendar_id"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.Toggl.APIToken == "" {
		return nil, fmt.Errorf("toggl.api_token is required")
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", cfg.TimeZone, err)
	}
	return &cfg, nil
}

// CalendarIDs returns the workspace-name to calendar-ID mapping as a map.
func (c *Config) CalendarIDs() map[string]string {
	ids := make(map[string]string, len(c.Calendars))
	for _, m := range c.Calendars {
		ids[m.Workspace] = m.CalendarID
	}
	return ids
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
