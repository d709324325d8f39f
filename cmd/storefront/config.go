package main

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort         string
	APIBaseURL       string
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	RedisAddr        string
	RedisPassword    string
	GuestCartTTL     time.Duration
	JWTSecret        string
	SessionCacheSize int
	EnableTracing    bool
}

func loadConfig(log logrus.FieldLogger) *Config {
	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:3000/api/v1/"),
		RequestTimeout:   getDuration(log, "REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:  getDuration(log, "SHUTDOWN_TIMEOUT", 10*time.Second),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		GuestCartTTL:     getDuration(log, "GUEST_CART_TTL", 30*24*time.Hour),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		SessionCacheSize: getInt(log, "SESSION_CACHE_SIZE", 10000),
		EnableTracing:    os.Getenv("ENABLE_TRACING") == "1",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(log logrus.FieldLogger, key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.WithField("key", key).WithField("value", raw).Warn("invalid duration, using default")
		return defaultValue
	}
	return d
}

func getInt(log logrus.FieldLogger, key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.WithField("key", key).WithField("value", raw).Warn("invalid number, using default")
		return defaultValue
	}
	return n
}
