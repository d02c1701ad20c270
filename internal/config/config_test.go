package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.API.TokensPerPeriod != 60 {
		t.Errorf("API.TokensPerPeriod = %d, want 60", cfg.API.TokensPerPeriod)
	}
	if cfg.API.PeriodSeconds != 60 {
		t.Errorf("API.PeriodSeconds = %d, want 60", cfg.API.PeriodSeconds)
	}
	if cfg.API.MaxRetries != 5 {
		t.Errorf("API.MaxRetries = %d, want 5", cfg.API.MaxRetries)
	}
	if cfg.Crawler.StartLandID != 132768 || cfg.Crawler.EndLandID != 165535 {
		t.Errorf("Crawler range = [%d, %d], want [132768, 165535]",
			cfg.Crawler.StartLandID, cfg.Crawler.EndLandID)
	}
	if cfg.Crawler.RecoveryInterval != 8*time.Hour {
		t.Errorf("Crawler.RecoveryInterval = %v, want 8h", cfg.Crawler.RecoveryInterval)
	}
	if cfg.Crawler.QuarantineThreshold != 0 {
		t.Errorf("Crawler.QuarantineThreshold = %d, want 0 (disabled)", cfg.Crawler.QuarantineThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOK_API_TOKENS_PER_PERIOD", "120")
	t.Setenv("LOK_API_FORBIDDEN_WAIT", "30s")
	t.Setenv("CRAWLER_DAILY_RUN_AT", "02:15")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.API.TokensPerPeriod != 120 {
		t.Errorf("API.TokensPerPeriod = %d, want 120", cfg.API.TokensPerPeriod)
	}
	if cfg.API.ForbiddenWait != 30*time.Second {
		t.Errorf("API.ForbiddenWait = %v, want 30s", cfg.API.ForbiddenWait)
	}
	if cfg.Crawler.DailyRunAt != "02:15" {
		t.Errorf("Crawler.DailyRunAt = %q, want 02:15", cfg.Crawler.DailyRunAt)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"inverted land range", "CRAWLER_START_LAND_ID", "999999"},
		{"zero tokens", "LOK_API_TOKENS_PER_PERIOD", "0"},
		{"negative period", "LOK_API_PERIOD_SECONDS", "-1"},
		{"bad run time", "CRAWLER_DAILY_RUN_AT", "25:99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() expected error with %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("06:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay() error = %v", err)
	}
	if h != 6 || m != 30 {
		t.Errorf("ParseTimeOfDay() = (%d, %d), want (6, 30)", h, m)
	}

	if _, _, err := ParseTimeOfDay("6.30"); err == nil {
		t.Error("ParseTimeOfDay() expected error for malformed input")
	}
}
