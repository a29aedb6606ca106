package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs at startup. It is loaded once
// in main and handed to the components that need it; nothing reads the
// environment after Load returns.
type Config struct {
	Port         string
	StoreDriver  string // "postgres" (default) or "memory"
	DatabaseURL  string
	AuthToken    string
	MetricsUser  string
	MetricsPass  string
	StoreTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:         os.Getenv("PORT"),
		StoreDriver:  os.Getenv("STORE_DRIVER"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		AuthToken:    os.Getenv("STREAMX_AUTH_TOKEN"),
		MetricsUser:  os.Getenv("METRICS_USER"),
		MetricsPass:  os.Getenv("METRICS_PASS"),
		StoreTimeout: 3 * time.Second,
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "postgres"
	}
	if v := os.Getenv("STORE_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			log.Fatalf("Invalid STORE_TIMEOUT_SECONDS: %q", v)
		}
		cfg.StoreTimeout = time.Duration(secs) * time.Second
	}

	if cfg.AuthToken == "" {
		log.Fatal("STREAMX_AUTH_TOKEN environment variable is not set")
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	return cfg
}
