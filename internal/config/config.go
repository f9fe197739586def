package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	// StreakGapReset restarts a streak at 1 after a missed period.
	StreakGapReset = "reset"
	// StreakGapKeep increments regardless of gaps.
	StreakGapKeep = "keep"
)

type Config struct {
	Port          string        `mapstructure:"port"`
	DBDriver      string        `mapstructure:"db_driver"`
	DBPath        string        `mapstructure:"db_path"`
	DatabaseURL   string        `mapstructure:"database_url"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
	LogLevel      string        `mapstructure:"log_level"`
	LogDir        string        `mapstructure:"log_dir"`
	Timezone      string        `mapstructure:"timezone"`

	StreakGapPolicy string        `mapstructure:"streak_gap_policy"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
}

func Default() Config {
	return Config{
		Port:            "8080",
		DBDriver:        DriverSQLite,
		DBPath:          "./data/trackx.db",
		JWTSecret:       "change-this-secret",
		TokenTTL:        72 * time.Hour,
		CORSOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		LogLevel:        "info",
		Timezone:        "Local",
		StreakGapPolicy: StreakGapReset,
		RetryMaxElapsed: 5 * time.Second,
	}
}

// Load resolves configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence. A key present in the
// file wins over its default even when its value is zero.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Override returns c with every non-empty field of flags applied on top.
// Command-line flags go through here, so an empty flag means unset.
func (c Config) Override(flags Config) (Config, error) {
	if err := mergo.Merge(&c, flags, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("apply flags: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for %s", DriverSQLite)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.StreakGapPolicy != StreakGapReset && c.StreakGapPolicy != StreakGapKeep {
		return fmt.Errorf("streak_gap_policy must be %q or %q", StreakGapReset, StreakGapKeep)
	}
	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

func (c Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadFile(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// Decoding into a non-empty slice would keep trailing defaults.
	if _, ok := raw["cors_origins"]; ok {
		target.CORSOrigins = nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	if hours := getEnvInt("TOKEN_TTL_HOURS", 0); hours > 0 {
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.StreakGapPolicy = getEnv("STREAK_GAP_POLICY", cfg.StreakGapPolicy)
	cfg.RetryMaxElapsed = getEnvDuration("RETRY_MAX_ELAPSED", cfg.RetryMaxElapsed)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
