package main

import (
	"testing"
	"time"

	"nursery-locator/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "NURSERY_FILE", "DISTANCE_UNIT", "FALLBACK_LAT", "FALLBACK_LON",
		"TIE_EPSILON", "SHUTDOWN_TIMEOUT", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != "9595" || cfg.NurseryFile != "NURSARY.xlsx" || cfg.Unit != models.Kilometers {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Fallback != (models.Coordinate{Lat: 20.56, Lon: 84.14}) {
		t.Errorf("unexpected fallback %+v", cfg.Fallback)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.AllowedOrigins != nil {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("FALLBACK_LAT", "21.0")
	t.Setenv("FALLBACK_LON", "85.5")
	t.Setenv("DISTANCE_UNIT", "m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Fallback != (models.Coordinate{Lat: 21, Lon: 85.5}) || cfg.Unit != models.Meters {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"FALLBACK_LAT", "north"},
		{"FALLBACK_LAT", "120"},
		{"DISTANCE_UNIT", "mi"},
		{"TIE_EPSILON", "-1"},
		{"SHUTDOWN_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := loadConfig(); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
