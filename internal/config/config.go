package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	JWTSecret        string
	ServerPort       string
	StoreDriver      string
	PubSubMode       string
	NotifyChannel    string
	SubscriberBuffer int
	CodeAttempts     int
	LogLevel         string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PubSubLocal    = "local"
	PubSubPostgres = "postgres"
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "postgres"),
		DBName:           getEnv("DB_NAME", "liveclass"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		JWTSecret:        getEnv("JWT_SECRET", "super-secret-key-change-me"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		StoreDriver:      getEnv("STORE_DRIVER", StoreDriverPostgres),
		PubSubMode:       getEnv("PUBSUB_MODE", PubSubLocal),
		NotifyChannel:    getEnv("NOTIFY_CHANNEL", "liveclass_changes"),
		SubscriberBuffer: getEnvInt("SUBSCRIBER_BUFFER", 64),
		CodeAttempts:     getEnvInt("CODE_ATTEMPTS", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// DSN builds the Postgres connection string shared by gorm and the pq listener.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
