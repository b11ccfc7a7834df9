package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Rooms    RoomsConfig
	Sweep    SweepConfig
	Sync     SyncQueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig configures the external calendar provider integration.
type CalendarConfig struct {
	Enabled       bool
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	CalendarID    string
	RefreshMargin time.Duration
	HTTPTimeout   time.Duration
}

// RoomsConfig tunes the cached room directory.
type RoomsConfig struct {
	DirectoryCacheTTL time.Duration
}

// SweepConfig controls the completion sweep promoting finished exams.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SyncQueueConfig tunes the background queue retrying transient sync failures.
type SyncQueueConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:       v.GetBool("CALENDAR_ENABLED"),
		BaseURL:       v.GetString("CALENDAR_BASE_URL"),
		TokenURL:      v.GetString("CALENDAR_TOKEN_URL"),
		ClientID:      v.GetString("CALENDAR_CLIENT_ID"),
		ClientSecret:  v.GetString("CALENDAR_CLIENT_SECRET"),
		CalendarID:    v.GetString("CALENDAR_ID"),
		RefreshMargin: parseDuration(v.GetString("CALENDAR_REFRESH_MARGIN"), 5*time.Minute),
		HTTPTimeout:   parseDuration(v.GetString("CALENDAR_HTTP_TIMEOUT"), 10*time.Second),
	}

	cfg.Rooms = RoomsConfig{
		DirectoryCacheTTL: parseDuration(v.GetString("ROOMS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Sweep = SweepConfig{
		Enabled:  v.GetBool("COMPLETION_SWEEP_ENABLED"),
		Interval: parseDuration(v.GetString("COMPLETION_SWEEP_INTERVAL"), 15*time.Minute),
	}

	cfg.Sync = SyncQueueConfig{
		Workers:    v.GetInt("SYNC_QUEUE_WORKERS"),
		MaxRetries: v.GetInt("SYNC_QUEUE_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("SYNC_QUEUE_RETRY_DELAY"), 30*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sidang")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_ENABLED", false)
	v.SetDefault("CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("CALENDAR_TOKEN_URL", "https://oauth2.googleapis.com/token")
	v.SetDefault("CALENDAR_CLIENT_ID", "")
	v.SetDefault("CALENDAR_CLIENT_SECRET", "")
	v.SetDefault("CALENDAR_ID", "primary")
	v.SetDefault("CALENDAR_REFRESH_MARGIN", "5m")
	v.SetDefault("CALENDAR_HTTP_TIMEOUT", "10s")

	v.SetDefault("ROOMS_CACHE_TTL", "10m")

	v.SetDefault("COMPLETION_SWEEP_ENABLED", true)
	v.SetDefault("COMPLETION_SWEEP_INTERVAL", "15m")

	v.SetDefault("SYNC_QUEUE_WORKERS", 1)
	v.SetDefault("SYNC_QUEUE_MAX_RETRIES", 2)
	v.SetDefault("SYNC_QUEUE_RETRY_DELAY", "30s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
