package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nursery-locator/internal/calculator"
	"nursery-locator/internal/models"
)

// Config is read once at startup from the environment.
type Config struct {
	Port            string
	NurseryFile     string
	NurserySheet    string
	BoundaryFile    string
	BoundaryName    string
	Fallback        models.Coordinate
	Unit            models.Unit
	TieEpsilon      float64
	UploadDir       string
	OutputDir       string
	TemplatesDir    string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

func loadConfig() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "9595"),
		NurseryFile:  getEnv("NURSERY_FILE", "NURSARY.xlsx"),
		NurserySheet: getEnv("NURSERY_SHEET", ""),
		BoundaryFile: getEnv("BOUNDARY_FILE", "khariar_boundary.geojson"),
		BoundaryName: getEnv("BOUNDARY_NAME", "Khariar Division"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:    getEnv("OUTPUT_DIR", "output"),
		TemplatesDir: getEnv("TEMPLATES_DIR", "templates"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Fallback.Lat, err = getEnvFloat("FALLBACK_LAT", 20.5600); err != nil {
		return Config{}, err
	}
	if cfg.Fallback.Lon, err = getEnvFloat("FALLBACK_LON", 84.1400); err != nil {
		return Config{}, err
	}
	if err := calculator.ValidateCoordinate(cfg.Fallback); err != nil {
		return Config{}, fmt.Errorf("invalid fallback coordinate: %w", err)
	}

	unit, ok := models.ParseUnit(getEnv("DISTANCE_UNIT", "km"))
	if !ok {
		return Config{}, fmt.Errorf("DISTANCE_UNIT must be km or m")
	}
	cfg.Unit = unit

	if cfg.TieEpsilon, err = getEnvFloat("TIE_EPSILON", calculator.DefaultEpsilon); err != nil {
		return Config{}, err
	}
	if cfg.TieEpsilon < 0 {
		return Config{}, fmt.Errorf("TIE_EPSILON must not be negative")
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
