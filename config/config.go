// Package config loads process configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the board server.
type Config struct {
	HTTPPort    int
	CORSOrigins string

	BoardDBPath    string
	ActivityDBPath string
	DBDebug        bool
	StoreTimeout   time.Duration

	JWTSecretKey    string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr   string
	CachePrefix string
	CacheTTL    time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	LogFeedLimit int
}

// Load reads a .env file when one is present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] Warning: failed to load .env: %v", err)
	}

	return Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 3000),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		BoardDBPath:    getEnv("BOARD_DB_PATH", "board.db"),
		ActivityDBPath: getEnv("ACTIVITY_DB_PATH", "activity.db"),
		DBDebug:        getEnv("DB_DEBUG", "") == "true",
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		JWTSecretKey:    getEnv("JWT_SECRET_KEY", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		CachePrefix: getEnv("CACHE_PREFIX", "board:"),
		CacheTTL:    getEnvDuration("CACHE_TTL", time.Minute),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		LogFeedLimit: getEnvInt("LOG_FEED_LIMIT", 20),
	}
}

// RedisEnabled reports whether Redis backed features should be wired.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("[config] Warning: %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("[config] Warning: %s=%q is not a duration, using %s", key, value, defaultValue)
	}
	return defaultValue
}
