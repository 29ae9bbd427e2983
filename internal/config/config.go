// Package config loads the backend server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/evcraddock/vigia/internal/email"
)

// Server holds the backend configuration.
type Server struct {
	Addr       string
	DBPath     string
	StorageDir string
	BaseURL    string // e.g. http://localhost:8080
	DevMode    bool
	AMQPURL    string
	Exchange   string
	AdminEmail string
	AdminOrg   string
	SMTP       email.SMTPConfig
}

// Load reads an optional .env file and then the VIGIA_* environment.
// Values already in the environment win over the file.
func Load(envFile string) (*Server, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	} else if err == nil {
		slog.Debug("loaded environment file", "path", envFile)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables alone.
func FromEnv() (*Server, error) {
	dbPath := os.Getenv("VIGIA_DB")
	if dbPath == "" {
		p, err := defaultDataPath("server.db")
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	storage := os.Getenv("VIGIA_STORAGE_DIR")
	if storage == "" {
		p, err := defaultDataPath("storage")
		if err != nil {
			return nil, err
		}
		storage = p
	}

	cfg := &Server{
		Addr:       envOrDefault("VIGIA_ADDR", ":8080"),
		DBPath:     dbPath,
		StorageDir: storage,
		BaseURL:    strings.TrimRight(envOrDefault("VIGIA_BASE_URL", "http://localhost:8080"), "/"),
		DevMode:    os.Getenv("VIGIA_DEV_MODE") == "true",
		AMQPURL:    os.Getenv("VIGIA_AMQP_URL"),
		Exchange:   envOrDefault("VIGIA_AMQP_EXCHANGE", "vigia"),
		AdminEmail: os.Getenv("VIGIA_ADMIN_EMAIL"),
		AdminOrg:   envOrDefault("VIGIA_ADMIN_ORG", "Default"),
		SMTP: email.SMTPConfig{
			Host: os.Getenv("VIGIA_SMTP_HOST"),
			Port: envOrDefault("VIGIA_SMTP_PORT", "587"),
			User: os.Getenv("VIGIA_SMTP_USER"),
			Pass: os.Getenv("VIGIA_SMTP_PASS"),
			From: os.Getenv("VIGIA_SMTP_FROM"),
		},
	}
	return cfg, nil
}

func defaultDataPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "vigia", name), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
