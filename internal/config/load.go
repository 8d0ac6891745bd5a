package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads and validates the config file (YAML or JSON). Unknown keys
// are rejected so typos surface at startup instead of silently defaulting.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Content.Topic == "" {
		c.Content.Topic = "motivation"
	}
	if len(c.Content.Captions) == 0 {
		c.Content.Captions = append([]string(nil), DefaultCaptions...)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if len(c.Schedule.Daily) == 0 {
		c.Schedule.Daily = []string{"18:00"}
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Europe/Kyiv"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate enforces the startup-fatal configuration rules; anything it
// rejects prevents the process from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if len(c.Telegram.AdminUserIDs) == 0 {
		return fmt.Errorf("telegram.admin_user_ids must name at least one administrator")
	}
	if strings.TrimSpace(c.Content.PixabayAPIKey) == "" {
		return fmt.Errorf("content.pixabay_api_key is required")
	}
	if c.Onboarding.RequireSecret && strings.TrimSpace(c.Onboarding.Secret) == "" {
		return fmt.Errorf("onboarding.require_secret is set but onboarding.secret is empty")
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if driver == "sqlite" || driver == "sqlite3" {
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	}

	for _, raw := range []struct{ path, val string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"content.fetch_timeout", c.Content.FetchTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"broadcast.send_timeout", c.Broadcast.SendTimeout},
	} {
		if _, err := ParseDurationField(raw.path, raw.val); err != nil {
			return err
		}
	}
	return nil
}
