package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Assistant backend
	BackendURL           string
	BackendTimeoutSecs   int
	StreamTimeoutSecs    int

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Credits
	FreeMessageLimit  int
	CreditWindowHours int
	CreditMaxRequests int

	// Sessions
	GuestSessionTTLHours int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		BackendURL:           mustGetEnv("BACKEND_URL"),
		BackendTimeoutSecs:   getEnvAsIntOrDefault("BACKEND_TIMEOUT_SECONDS", 15),
		StreamTimeoutSecs:    getEnvAsIntOrDefault("STREAM_TIMEOUT_SECONDS", 300),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		FreeMessageLimit:     getEnvAsIntOrDefault("FREE_MESSAGE_LIMIT", 10),
		CreditWindowHours:    getEnvAsIntOrDefault("CREDIT_WINDOW_HOURS", 2),
		CreditMaxRequests:    getEnvAsIntOrDefault("CREDIT_MAX_REQUESTS", 30),
		GuestSessionTTLHours: getEnvAsIntOrDefault("GUEST_SESSION_TTL_HOURS", 24),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
