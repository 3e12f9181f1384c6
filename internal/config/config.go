package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	UI struct {
		RedirectDelay time.Duration `yaml:"redirect_delay"`
	} `yaml:"ui"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Stub struct {
		Port string `yaml:"port"`
	} `yaml:"stub"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.API.BaseURL = "http://localhost:8080"
	cfg.API.Timeout = 10 * time.Second
	cfg.UI.RedirectDelay = 1500 * time.Millisecond
	cfg.Log.Level = "info"
	cfg.Stub.Port = "8080"
	return cfg
}

// Load builds the configuration in three layers: defaults, then the optional
// YAML file at yamlPath, then the environment (with .env at envPath loaded first).
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if v := os.Getenv("COFFEE_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("COFFEE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("COFFEE_HTTP_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("COFFEE_REDIRECT_DELAY"); v != "" {
		d, err := parseDelay(v)
		if err != nil {
			return nil, fmt.Errorf("COFFEE_REDIRECT_DELAY: %w", err)
		}
		cfg.UI.RedirectDelay = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STUB_PORT"); v != "" {
		cfg.Stub.Port = v
	}

	if cfg.API.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if cfg.UI.RedirectDelay < 0 {
		return nil, errors.New("redirect delay cannot be negative")
	}

	return cfg, nil
}

// parseDelay accepts Go durations ("1.5s") and bare milliseconds ("1500").
func parseDelay(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
