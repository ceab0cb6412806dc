package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// Path is the SQLite database file. The whole system runs against a
	// single database file; in-memory DSNs are used by tests only.
	Path         string
	BusyTimeout  time.Duration
	TxTimeout    time.Duration
	AutoMigrate  bool
	SeedData     bool
	MaxOpenConns int
}

type SchedulerConfig struct {
	// CheckInterval is how often the reset time setting is re-read and the
	// schedule adjusted if it changed.
	CheckInterval time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":3000"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         getEnv("SQLITE_PATH", "queue.db"),
			BusyTimeout:  time.Duration(getEnvInt("DB_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,
			TxTimeout:    time.Duration(getEnvInt("TX_TIMEOUT_SECONDS", 10)) * time.Second,
			AutoMigrate:  getEnvBool("MIGRATIONS_AUTO", true),
			SeedData:     getEnvBool("MIGRATIONS_SEED", true),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 1),
		},
		Scheduler: SchedulerConfig{
			CheckInterval: time.Duration(getEnvInt("RESET_CHECK_INTERVAL_MINUTES", 5)) * time.Minute,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
