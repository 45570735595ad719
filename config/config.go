package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr     = ":8080"
	DefaultDatabase = "./data/macro_studio.db"
	DefaultProvider = "gemini"

	// ExportFileName is the download name for exported macro documents.
	ExportFileName = "macro_config.json"
)

// Config is the service configuration. Values come from an optional YAML file
// and are then overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Generator GeneratorConfig `yaml:"generator"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// LogDir receives one timestamped log file per run. Empty disables file logging.
	LogDir string `yaml:"log_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GeneratorConfig selects and configures the text-generation provider.
type GeneratorConfig struct {
	Provider string `yaml:"provider"` // gemini, anthropic, openai
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// Default returns a Config with every field populated.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: DefaultAddr, LogDir: "log"},
		Database:  DatabaseConfig{Path: DefaultDatabase},
		Generator: GeneratorConfig{Provider: DefaultProvider},
	}
}

// Load reads path (if non-empty and present), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.Generator.Provider = strings.ToLower(strings.TrimSpace(cfg.Generator.Provider))
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = DefaultProvider
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabase
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, "MACRO_STUDIO_ADDR")
	set(&c.Database.Path, "MACRO_STUDIO_DB")
	set(&c.Generator.Provider, "MACRO_STUDIO_PROVIDER")
	set(&c.Generator.Model, "MACRO_STUDIO_MODEL")
	if strings.ToLower(c.Generator.Provider) == "openai" {
		set(&c.Generator.BaseURL, "OPENAI_BASE_URL")
	}

	if c.Generator.APIKey != "" {
		return
	}
	// Provider-specific credentials, first match wins.
	var keys []string
	switch strings.ToLower(c.Generator.Provider) {
	case "anthropic":
		keys = []string{"ANTHROPIC_API_KEY"}
	case "openai":
		keys = []string{"OPENAI_API_KEY"}
	default:
		keys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}
	}
	for _, k := range keys {
		if v := getenv(k); v != "" {
			c.Generator.APIKey = v
			return
		}
	}
}
