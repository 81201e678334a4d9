package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stocksage/internal/assistant"
	"stocksage/internal/store"
)

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Log       LogConfig             `yaml:"log"`
	Store     StoreConfig           `yaml:"store"`
	Market    MarketConfig          `yaml:"market"`
	Watchlist []store.WatchlistItem `yaml:"watchlist"`
	Assistant assistant.Config      `yaml:"assistant"`
	Chat      ChatConfig            `yaml:"chat"`
	Client    ClientConfig          `yaml:"client"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type MarketConfig struct {
	PollIntervalSec      int `yaml:"poll_interval_sec"`
	MinRequestIntervalMs int `yaml:"min_request_interval_ms"`
	TimeoutMs            int `yaml:"timeout_ms"`
	HistoryDays          int `yaml:"history_days"`
	IndicatorTTLSec      int `yaml:"indicator_ttl_sec"`
}

// ChatConfig is the server's session setup. RemoteEndpoint points sessions
// at another assistant server; empty means the in-process assistant answers.
type ChatConfig struct {
	RemoteEndpoint string `yaml:"remote_endpoint"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	MaxSessions    int    `yaml:"max_sessions"`
}

// ClientConfig is read by the terminal client only.
type ClientConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/stocksage.db"},
		},
		Market: MarketConfig{
			PollIntervalSec:      60,
			MinRequestIntervalMs: 1000,
			TimeoutMs:            5000,
			HistoryDays:          120,
			IndicatorTTLSec:      900,
		},
		Watchlist: []store.WatchlistItem{
			{Symbol: "AAPL", CompanyName: "Apple Inc."},
			{Symbol: "GOOGL", CompanyName: "Alphabet Inc."},
			{Symbol: "MSFT", CompanyName: "Microsoft Corporation"},
			{Symbol: "AMZN", CompanyName: "Amazon.com, Inc."},
			{Symbol: "META", CompanyName: "Meta Platforms, Inc."},
		},
		Assistant: assistant.Config{
			Enabled:   false,
			Model:     "gpt-4o-mini",
			TimeoutMs: 60000,
		},
		Chat: ChatConfig{
			TimeoutMs:   60000,
			MaxSessions: 100,
		},
		Client: ClientConfig{
			TimeoutMs: 60000,
		},
	}
}

// Load reads the YAML file at path over Default, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("STOCKSAGE_SERVER_URL"); v != "" {
		cfg.Client.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOCKSAGE_REMOTE_ASSISTANT_URL"); v != "" {
		cfg.Chat.RemoteEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOCKSAGE_DB_PATH"); v != "" {
		cfg.Store.Sqlite.Path = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Assistant.APIKey == "" {
		cfg.Assistant.APIKey = v
		cfg.Assistant.Enabled = true
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Assistant.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Assistant.BaseURL = v
	}
	return nil
}
