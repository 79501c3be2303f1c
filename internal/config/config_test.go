package config

import (
	"testing"

	"github.com/ggz/smsbridge/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.DatabasePath != "smsbridge.db" {
		t.Errorf("DatabasePath = %s, want smsbridge.db", cfg.DatabasePath)
	}
	if cfg.MaxDeliveryAttempts != 5 {
		t.Errorf("MaxDeliveryAttempts = %d, want 5", cfg.MaxDeliveryAttempts)
	}
	if cfg.RetryBackoffSeconds != 10 {
		t.Errorf("RetryBackoffSeconds = %d, want 10", cfg.RetryBackoffSeconds)
	}
	if cfg.CodePattern != DefaultCodePattern {
		t.Errorf("CodePattern = %s, want the built-in default", cfg.CodePattern)
	}
	if !cfg.Listening {
		t.Error("Listening should default to true")
	}
	if cfg.Transport != "NONE" {
		t.Errorf("Transport = %s, want NONE", cfg.Transport)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRANSPORT", "HTTP")
	t.Setenv("WEBHOOK_URL", "http://localhost:9000/codes")
	t.Setenv("CODE_PATTERN", `([0-9]{6})`)
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.Transport != "HTTP" {
		t.Errorf("Transport = %s, want HTTP", cfg.Transport)
	}
	if cfg.CodePattern != `([0-9]{6})` {
		t.Errorf("CodePattern = %s, want the override", cfg.CodePattern)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
}

func TestPipelineSettings(t *testing.T) {
	t.Setenv("TRANSPORT", "EMAIL")
	t.Setenv("EMAIL_HOST", "smtp.example.com")
	t.Setenv("EMAIL_PORT", "465")
	t.Setenv("EMAIL_SSL", "true")
	t.Setenv("EMAIL_RECIPIENT", "inbox@example.com")
	t.Setenv("SENDER_FILTER", "1069")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings, err := cfg.PipelineSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settings.Transport != domain.TransportEmail {
		t.Errorf("Transport = %s, want EMAIL", settings.Transport)
	}
	if settings.Email.Host != "smtp.example.com" {
		t.Errorf("Email.Host = %s, want smtp.example.com", settings.Email.Host)
	}
	if !settings.Email.SSL {
		t.Error("Email.SSL should be true")
	}
	if settings.SenderFilter != "1069" {
		t.Errorf("SenderFilter = %s, want 1069", settings.SenderFilter)
	}
}

func TestPipelineSettings_InvalidTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "CARRIER_PIGEON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cfg.PipelineSettings(); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestPipelineSettings_InvalidPattern(t *testing.T) {
	t.Setenv("CODE_PATTERN", "([0-9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cfg.PipelineSettings(); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
