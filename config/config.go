package config

import (
	"os"
	"strconv"
	"time"
)

// Config собирает все настройки приложения из окружения.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost string
	RedisPort string

	JWTSecret   string
	TokenTTL    time.Duration
	CSRFAuthKey string

	// Idle sessions older than SweepThreshold are abandoned by the sweep.
	SweepThreshold time.Duration
	SweepInterval  time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	CORSOrigins []string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "1234"),
		DBName:     getEnv("DB_NAME", "momentum_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		JWTSecret:   getEnv("JWT_SECRET", "supersecretkey"),
		TokenTTL:    getDuration("TOKEN_TTL", 24*time.Hour),
		CSRFAuthKey: getEnv("CSRF_AUTH_KEY", ""),

		SweepThreshold: getDuration("SESSION_SWEEP_THRESHOLD", 24*time.Hour),
		SweepInterval:  getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),

		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute),

		CORSOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
