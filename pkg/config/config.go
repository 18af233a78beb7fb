// Package config loads runtime configuration from the environment, with an
// optional YAML overlay for deployments that prefer files over env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lotbot/lotbot/pkg/logger"
)

// Config is the full runtime configuration.
type Config struct {
	// BotToken authenticates against the chat network.
	BotToken string `env:"BOT_TOKEN" yaml:"bot_token"`
	// DatabasePath is the SQLite database file location.
	DatabasePath string `env:"DATABASE_PATH" envDefault:"lotbot.db" yaml:"database_path"`
	// AdminIDs is a comma-separated list of admin user ids.
	AdminIDs string `env:"ADMIN_IDS" yaml:"admin_ids"`
	// HTTPAddr is the ops API listen address. Empty disables the ops API.
	HTTPAddr string `env:"HTTP_ADDR" yaml:"http_addr"`
	// OpsAPIKey authenticates ops API clients. Empty generates a session key.
	OpsAPIKey string `env:"OPS_API_KEY" yaml:"ops_api_key"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
}

// overlayPathVar names an optional YAML file applied over the environment.
const overlayPathVar = "LOTBOT_CONFIG"

// Load reads configuration from the environment, then applies the YAML
// overlay named by LOTBOT_CONFIG if set. Overlay values win only where they
// are non-empty.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if path := os.Getenv(overlayPathVar); path != "" {
		if err := applyOverlay(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay %s: %w", path, err)
	}
	overlay := Config{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config overlay %s: %w", path, err)
	}

	if overlay.BotToken != "" {
		cfg.BotToken = overlay.BotToken
	}
	if overlay.DatabasePath != "" {
		cfg.DatabasePath = overlay.DatabasePath
	}
	if overlay.AdminIDs != "" {
		cfg.AdminIDs = overlay.AdminIDs
	}
	if overlay.HTTPAddr != "" {
		cfg.HTTPAddr = overlay.HTTPAddr
	}
	if overlay.OpsAPIKey != "" {
		cfg.OpsAPIKey = overlay.OpsAPIKey
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	return nil
}

// ParseAdminIDs converts the comma-separated admin list into user ids.
// Malformed entries are logged and skipped.
func (c *Config) ParseAdminIDs() []int64 {
	if strings.TrimSpace(c.AdminIDs) == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(c.AdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.WarnCF("config", "skipping malformed admin id", map[string]interface{}{"entry": part})
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
