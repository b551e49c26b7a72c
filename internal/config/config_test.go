package config

import (
	"os"
	"path/filepath"
	"testing"

	"staycal/internal/model"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9090"
	cfg.SyncCron = "0 * * * *"
	cfg.Feeds = []FeedConfig{
		{Property: "Jacky Winter Gardens", Origin: "airbnb", URL: "https://example.com/a.ics", Label: "Gardens Airbnb"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Listen != "0.0.0.0:9090" {
		t.Errorf("Listen = %q", got.Listen)
	}
	if got.SyncCron != "0 * * * *" {
		t.Errorf("SyncCron = %q", got.SyncCron)
	}
	if len(got.Feeds) != 1 || got.Feeds[0].Origin != "airbnb" {
		t.Errorf("Feeds = %+v", got.Feeds)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	var cfg Config
	cfg.Storage.Backend = "cassandra"
	cfg.Normalize()

	if cfg.Storage.Backend != "file" {
		t.Errorf("unknown backend not reset: %q", cfg.Storage.Backend)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Storage.Redis.Key != "staycal:reservations" {
		t.Errorf("Redis.Key = %q", cfg.Storage.Redis.Key)
	}
	if len(cfg.Properties) != 2 {
		t.Errorf("Properties = %v", cfg.Properties)
	}
}

func TestSourcesSkipsUnknownOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feeds = []FeedConfig{
		{Property: "Jacky Winter Gardens", Origin: "airbnb", URL: "https://example.com/a.ics"},
		{Property: "Jacky Winter Gardens", Origin: "vrbo", URL: "https://example.com/v.ics"},
		{Property: "Jacky Winter Waters", Origin: "manual", URL: "https://example.com/m.ics"},
	}

	sources := cfg.Sources()
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1: %+v", len(sources), sources)
	}
	if sources[0].Origin != model.OriginAirbnb {
		t.Errorf("Origin = %q", sources[0].Origin)
	}
}
