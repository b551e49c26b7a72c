package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"staycal/internal/feed"
	"staycal/internal/model"
)

// FeedConfig describes one calendar feed subscription: which property it
// covers, which platform publishes it, and where to fetch it.
type FeedConfig struct {
	Property string `yaml:"property" json:"property"`
	Origin   string `yaml:"origin" json:"origin"`
	URL      string `yaml:"url" json:"url"`
	// Label is a human-friendly name for operator-facing messages.
	Label string `yaml:"label" json:"label"`
}

// RedisConfig holds the connection settings for the Redis storage backend.
type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Key      string `yaml:"key" json:"key"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	// Backend is "file" or "redis".
	Backend string      `yaml:"backend" json:"backend"`
	Path    string      `yaml:"path" json:"path"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	SMSEnabled bool   `yaml:"sms_enabled" json:"sms_enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SyncCron is a cron-style schedule string for periodic feed syncs.
	SyncCron string `yaml:"sync_cron" json:"sync_cron"`

	// FetchProxy is the public fetch-proxy prefix used when a direct feed
	// fetch fails; empty disables the fallback.
	FetchProxy string `yaml:"fetch_proxy" json:"fetch_proxy"`

	// Properties is the fixed set of managed units.
	Properties []string `yaml:"properties" json:"properties"`

	// Feeds is the list of property × platform feed subscriptions.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "127.0.0.1:8080",
		LogLevel:   "info",
		SyncCron:   "*/30 * * * *",
		FetchProxy: feed.DefaultProxy,
		Properties: []string{"Jacky Winter Gardens", "Jacky Winter Waters"},
		Feeds:      []FeedConfig{},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "./var/reservations.json",
			Redis: RedisConfig{
				Address: "127.0.0.1:6379",
				Key:     "staycal:reservations",
			},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SyncCron == "" {
		c.SyncCron = "*/30 * * * *"
	}
	if len(c.Properties) == 0 {
		c.Properties = []string{"Jacky Winter Gardens", "Jacky Winter Waters"}
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	switch c.Storage.Backend {
	case "file", "redis":
	default:
		c.Storage.Backend = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./var/reservations.json"
	}
	if c.Storage.Redis.Address == "" {
		c.Storage.Redis.Address = "127.0.0.1:6379"
	}
	if c.Storage.Redis.Key == "" {
		c.Storage.Redis.Key = "staycal:reservations"
	}
}

// Sources converts the configured feeds into fetcher sources, dropping
// entries with an unknown origin so a typo cannot poison the store.
func (c *Config) Sources() []feed.Source {
	out := make([]feed.Source, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		origin := model.Origin(f.Origin)
		if !model.KnownOrigin(origin) || origin == model.OriginManual {
			continue
		}
		out = append(out, feed.Source{
			Property: f.Property,
			Origin:   origin,
			URL:      f.URL,
			Label:    f.Label,
		})
	}
	return out
}

// KnownProperty reports whether name is one of the managed units.
func (c *Config) KnownProperty(name string) bool {
	for _, p := range c.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created as needed, 0600 perms) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename, 0600).
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
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".staycal-config-*.tmp")
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
