package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	DownloadModeEcho   = "echo"
	DownloadModeStream = "stream"
)

type Config struct {
	App struct {
		Port     int    `yaml:"port"`
		DataPath string `yaml:"data_path"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"app"`

	Metadata struct {
		BaseURL        string        `yaml:"base_url"`
		ImageBaseURL   string        `yaml:"image_base_url"`
		Language       string        `yaml:"language"`
		Timeout        time.Duration `yaml:"timeout"`
		RetryAttempts  uint          `yaml:"retry_attempts"` // 1 means a single attempt, no retries
		RetryDelay     time.Duration `yaml:"retry_delay"`
		HealthInterval string        `yaml:"health_interval"`
		TMDB           struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"tmdb"`
	} `yaml:"metadata"`

	Download struct {
		Mode      string `yaml:"mode"` // 'echo' or 'stream'
		UserAgent string `yaml:"user_agent"`
	} `yaml:"download"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.App.Port = 3000
	cfg.App.DataPath = "./data"
	cfg.App.Debug = false

	cfg.Metadata.BaseURL = "https://api.themoviedb.org/3"
	cfg.Metadata.ImageBaseURL = "https://image.tmdb.org/t/p"
	cfg.Metadata.Language = "fr-FR"
	cfg.Metadata.Timeout = 10 * time.Second
	cfg.Metadata.RetryAttempts = 1
	cfg.Metadata.RetryDelay = 300 * time.Millisecond
	cfg.Metadata.HealthInterval = "@every 5m"

	cfg.Download.Mode = DownloadModeEcho
	cfg.Download.UserAgent = "Mozilla/5.0 (compatible; moviebox/1.0)"
}

func loadFromEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TMDB_API_KEY")); v != "" {
		cfg.Metadata.TMDB.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TMDB_LANGUAGE")); v != "" {
		cfg.Metadata.Language = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("MOVIEBOX_DEBUG")); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.App.Debug = debug
		}
	}
	if v := strings.TrimSpace(os.Getenv("DOWNLOAD_MODE")); v != "" {
		cfg.Download.Mode = strings.ToLower(v)
	}
}

// Validate rejects configurations the gateway cannot serve with. It also
// canonicalises the display language tag in place.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Metadata.TMDB.APIKey) == "" {
		errs = append(errs, errors.New("metadata.tmdb.api_key is required (or set TMDB_API_KEY)"))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d is out of range", c.App.Port))
	}

	tag, err := language.Parse(c.Metadata.Language)
	if err != nil {
		errs = append(errs, fmt.Errorf("metadata.language %q is not a valid language tag: %w", c.Metadata.Language, err))
	} else {
		c.Metadata.Language = tag.String()
	}

	if c.Metadata.RetryAttempts == 0 {
		c.Metadata.RetryAttempts = 1
	}

	switch c.Download.Mode {
	case DownloadModeEcho, DownloadModeStream:
	default:
		errs = append(errs, fmt.Errorf("download.mode must be %q or %q, got %q", DownloadModeEcho, DownloadModeStream, c.Download.Mode))
	}

	return errors.Join(errs...)
}
