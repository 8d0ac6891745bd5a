package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  admin_user_ids: [471637263, 5142786008]
content:
  pixabay_api_key: "px-key"
storage:
  path: ./test.db
schedule:
  timezone: "Europe/Kyiv"
  daily: ["18:00"]
`

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 {
		t.Fatalf("admins = %v", cfg.Telegram.AdminUserIDs)
	}
	// defaults
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver default = %q", cfg.Storage.Driver)
	}
	if cfg.Content.Topic != "motivation" {
		t.Fatalf("topic default = %q", cfg.Content.Topic)
	}
	if len(cfg.Content.Captions) == 0 {
		t.Fatal("captions default missing")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML+"\nsurprise: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateFatalRules(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }},
		{name: "no admins", mutate: func(c *Config) { c.Telegram.AdminUserIDs = nil }},
		{name: "missing api key", mutate: func(c *Config) { c.Content.PixabayAPIKey = "" }},
		{name: "secret required but empty", mutate: func(c *Config) {
			c.Onboarding.RequireSecret = true
			c.Onboarding.Secret = ""
		}},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Path = "" }},
		{name: "bad duration", mutate: func(c *Config) { c.Broadcast.SendTimeout = "soon" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t", AdminUserIDs: []int64{1}},
				Content:  ContentConfig{PixabayAPIKey: "k"},
				Storage:  StorageConfig{Driver: "sqlite", Path: "./x.db"},
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_user_ids":[1]},"content":{"pixabay_api_key":"k"},"storage":{"path":"./x.db"}}{}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
