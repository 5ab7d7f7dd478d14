package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	DBUrl                     string
	JWTSecret                 string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	AppEnv                    string
	EnableDocs                bool
	AccessTokenTTL            time.Duration
	RefreshTokenTTL           time.Duration
	ProfileResolveTimeout     time.Duration
	DefaultTrainerClientLimit int
	AuthRatePerMinute         int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		DBUrl:                     getEnv("DB_URL", ""),
		JWTSecret:                 jwtSecret,
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		AppEnv:                    normalizeEnv(getEnv("APP_ENV", "production")),
		EnableDocs:                getEnvBool("ENABLE_API_DOCS", false),
		AccessTokenTTL:            getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:           getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ProfileResolveTimeout:     getEnvDuration("PROFILE_RESOLVE_TIMEOUT", 10*time.Second),
		DefaultTrainerClientLimit: getEnvInt("DEFAULT_TRAINER_CLIENT_LIMIT", 10),
		AuthRatePerMinute:         getEnvInt("AUTH_RATE_PER_MINUTE", 30),
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.ProfileResolveTimeout <= 0 {
		return nil, fmt.Errorf("PROFILE_RESOLVE_TIMEOUT must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
