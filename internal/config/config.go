package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the API server, scheduler and bot.
type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	CORSOrigin string `yaml:"cors_origin"`

	StorageDriver string `yaml:"storage_driver"`
	DatabaseURL   string `yaml:"database_url"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDBName   string `yaml:"mongo_db_name"`

	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`

	TelegramToken string `yaml:"telegram_token"`
	ReportTime    string `yaml:"report_time"`
	Timezone      string `yaml:"timezone"`

	Holidays HolidaysConfig `yaml:"holidays"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// HolidaysConfig describes the upstream holiday API.
type HolidaysConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheHours     int    `yaml:"cache_hours"`
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTPAddr:      ":3000",
		CORSOrigin:    "*",
		StorageDriver: DriverSQLite,
		DatabaseURL:   "task_calendar.db",
		MongoDBName:   "task_calendar",
		TokenTTLHours: 24,
		ReportTime:    "08:00",
		Timezone:      "Local",
		Holidays: HolidaysConfig{
			APIURL:         "https://api.invertexto.com/v1/holidays",
			TimeoutSeconds: 10,
			CacheHours:     24,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and finally the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %q: %w", path, err)
			}
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(&cfg)

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.CORSOrigin, "CORS_ORIGIN")
	setString(&cfg.StorageDriver, "STORAGE_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDBName, "MONGO_DB_NAME")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setInt(&cfg.TokenTTLHours, "TOKEN_TTL_HOURS")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.ReportTime, "REPORT_TIME")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Holidays.APIURL, "HOLIDAYS_API_URL")
	setString(&cfg.Holidays.APIToken, "INVERT")
	setString(&cfg.Holidays.APIToken, "HOLIDAYS_API_TOKEN")
	setInt(&cfg.Holidays.TimeoutSeconds, "HOLIDAYS_TIMEOUT_SECONDS")
	setInt(&cfg.Holidays.CacheHours, "HOLIDAYS_CACHE_HOURS")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		*dst = n
	}
}

// Validate reports settings that make the server unusable.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StorageDriver {
	case DriverSQLite:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c Config) HolidaysTimeout() time.Duration {
	return time.Duration(c.Holidays.TimeoutSeconds) * time.Second
}

func (c Config) HolidaysCacheTTL() time.Duration {
	return time.Duration(c.Holidays.CacheHours) * time.Hour
}
