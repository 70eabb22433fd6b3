// Package config loads node settings from an optional YAML file, a .env file
// and BRACKET_* environment variables, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	DBPath         string        `yaml:"db_path"`
	LogLevel       string        `yaml:"log_level"`
	Retention      time.Duration `yaml:"retention"`
	PruneInterval  time.Duration `yaml:"prune_interval"`
	HistoryTopN    int           `yaml:"history_top_n"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Relay          RelayConfig   `yaml:"relay"`
	S3             S3Config      `yaml:"s3"`
}

// RelayConfig bounds inbound snapshot pushes per WebSocket client.
type RelayConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// S3Config points at an S3-compatible bucket for history export. Export is
// off when Bucket is empty.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "bracket_mesh.db",
		LogLevel:       "info",
		Retention:      30 * 24 * time.Hour,
		PruneInterval:  time.Hour,
		HistoryTopN:    3,
		AllowedOrigins: []string{"*"},
		Relay:          RelayConfig{Rate: 5, Burst: 10},
		S3:             S3Config{Region: "auto", Prefix: "history/"},
	}
}

// Load reads path if it exists. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("no config file found, using defaults", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BRACKET_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BRACKET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BRACKET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BRACKET_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BRACKET_RETENTION: %w", err)
		}
		cfg.Retention = d
	}
	if v := os.Getenv("BRACKET_HISTORY_TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BRACKET_HISTORY_TOP_N: %w", err)
		}
		cfg.HistoryTopN = n
	}
	if v := os.Getenv("BRACKET_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("BRACKET_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("BRACKET_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("BRACKET_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("BRACKET_S3_PREFIX"); v != "" {
		cfg.S3.Prefix = v
	}
	if v := os.Getenv("BRACKET_S3_ACCESS_KEY_ID"); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := os.Getenv("BRACKET_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.S3.SecretAccessKey = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", c.Retention)
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("prune_interval must be positive, got %s", c.PruneInterval)
	}
	if c.Relay.Rate <= 0 || c.Relay.Burst <= 0 {
		return fmt.Errorf("relay rate and burst must be positive, got %v/%d", c.Relay.Rate, c.Relay.Burst)
	}
	if c.S3.Enabled() && (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("s3 access key id and secret must be set together")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
