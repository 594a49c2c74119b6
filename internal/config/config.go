// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for databases (always absolute)
	AnalysisServiceURL string // Base URL of the external comparison analysis service
	AnalysisTimeout    time.Duration
	LogLevel           string
	Port               int
	DevMode            bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, always resolved to an absolute path
	dataDir := getEnv("LOOKOUT_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lookout")
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	port, err := strconv.Atoi(getEnv("LOOKOUT_PORT", "8090"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKOUT_PORT: %w", err)
	}

	timeoutSec, err := strconv.Atoi(getEnv("LOOKOUT_ANALYSIS_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKOUT_ANALYSIS_TIMEOUT_SECONDS: %w", err)
	}

	return &Config{
		DataDir:            absDataDir,
		AnalysisServiceURL: getEnv("LOOKOUT_ANALYSIS_URL", "http://localhost:8000"),
		AnalysisTimeout:    time.Duration(timeoutSec) * time.Second,
		LogLevel:           getEnv("LOOKOUT_LOG_LEVEL", "info"),
		Port:               port,
		DevMode:            getEnv("LOOKOUT_DEV_MODE", "") == "true",
	}, nil
}

// getEnv retrieves an environment variable value, returning a fallback
// if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
