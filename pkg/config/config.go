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

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Suggestions SuggestionsConfig
	Leaves      LeavesConfig
	Effects     EffectsConfig
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

// SuggestionsConfig tunes the availability matcher.
type SuggestionsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	HorizonWeeks int
}

// LeavesConfig controls leave attachment storage.
type LeavesConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// EffectsConfig sizes the worker queue executing state machine side effects.
type EffectsConfig struct {
	Workers    int
	MaxRetries int
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

	cfg.Suggestions = SuggestionsConfig{
		CacheEnabled: v.GetBool("SUGGESTIONS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("SUGGESTIONS_CACHE_TTL"), time.Minute),
		HorizonWeeks: v.GetInt("SUGGESTIONS_HORIZON_WEEKS"),
	}

	maxLeaveSize := v.GetInt64("LEAVES_MAX_FILE_SIZE")
	if maxLeaveSize <= 0 {
		maxLeaveSize = 10 * 1024 * 1024
	}
	cfg.Leaves = LeavesConfig{
		StorageDir:       v.GetString("LEAVES_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("LEAVES_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("LEAVES_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxLeaveSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("LEAVES_ALLOWED_MIME_TYPES")),
	}

	cfg.Effects = EffectsConfig{
		Workers:    v.GetInt("EFFECTS_WORKER_CONCURRENCY"),
		MaxRetries: v.GetInt("EFFECTS_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "schuelertreff")
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

	v.SetDefault("SUGGESTIONS_CACHE_ENABLED", false)
	v.SetDefault("SUGGESTIONS_CACHE_TTL", "1m")
	v.SetDefault("SUGGESTIONS_HORIZON_WEEKS", 52)

	v.SetDefault("LEAVES_STORAGE_DIR", "./attachments")
	v.SetDefault("LEAVES_SIGNED_URL_SECRET", "dev_attachments_secret")
	v.SetDefault("LEAVES_SIGNED_URL_TTL", "30m")
	v.SetDefault("LEAVES_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("LEAVES_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")

	v.SetDefault("EFFECTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EFFECTS_WORKER_RETRIES", 3)
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
