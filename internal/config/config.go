package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"

	envPrefix  = "TRACKMAN_"
	configFile = "TRACKMAN_CONFIG"
)

type Config struct {
	DataDir          string `koanf:"data_dir"`
	DBPath           string `koanf:"db_path"`
	Store            string `koanf:"store"`
	APIBaseURL       string `koanf:"api_base_url"`
	ReportBaseURL    string `koanf:"report_base_url"`
	UserAgent        string `koanf:"user_agent"`
	FetchConcurrency int    `koanf:"fetch_concurrency"`
	MaxRedirects     int    `koanf:"max_redirects"`
	BatchThreshold   int    `koanf:"batch_threshold"`
	BatchSize        int    `koanf:"batch_size"`
	ServerPort       string `koanf:"server_port"`
	LogLevel         string `koanf:"log_level"`
	LogFormat        string `koanf:"log_format"`
}

func Default() *Config {
	return &Config{
		DataDir:          "data",
		DBPath:           filepath.Join("data", "trackman.db"),
		Store:            StoreCSV,
		APIBaseURL:       "https://golf-player-activities.trackmangolf.com",
		ReportBaseURL:    "https://web-dynamic-reports.trackmangolf.com/",
		UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
		FetchConcurrency: 4,
		MaxRedirects:     10,
		BatchThreshold:   10,
		BatchSize:        5,
		ServerPort:       "8080",
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Load layers defaults, an optional YAML file named by TRACKMAN_CONFIG and
// TRACKMAN_* environment variables, lowest precedence first. A .env file in
// the working directory is read into the environment before that.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(configFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("data_dir is required")
	case c.Store != StoreCSV && c.Store != StoreSQLite:
		return fmt.Errorf("store must be %q or %q, got %q", StoreCSV, StoreSQLite, c.Store)
	case c.Store == StoreSQLite && c.DBPath == "":
		return fmt.Errorf("db_path is required for the sqlite store")
	case c.APIBaseURL == "":
		return fmt.Errorf("api_base_url is required")
	case c.FetchConcurrency < 1:
		return fmt.Errorf("fetch_concurrency must be at least 1")
	case c.BatchSize < 1:
		return fmt.Errorf("batch_size must be at least 1")
	}
	return nil
}

func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}

// LogLoaded reports the effective configuration once the logger exists.
func LogLoaded(cfg *Config, logger zerolog.Logger) {
	logger.Debug().
		Str("data_dir", cfg.DataDir).
		Str("db_path", cfg.DBPath).
		Str("store", cfg.Store).
		Str("api_base_url", cfg.APIBaseURL).
		Int("fetch_concurrency", cfg.FetchConcurrency).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")
}
