package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid JSON config",
			config: Config{
				Level:        "info",
				Format:       "json",
				RedactValues: true,
			},
			wantErr: false,
		},
		{
			name: "valid text config",
			config: Config{
				Level:  "debug",
				Format: "text",
			},
			wantErr: false,
		},
		{
			name:    "empty config defaults",
			config:  Config{},
			wantErr: false,
		},
		{
			name: "invalid log level",
			config: Config{
				Level:  "invalid",
				Format: "json",
			},
			wantErr: true,
		},
		{
			name: "invalid format",
			config: Config{
				Level:  "info",
				Format: "invalid",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if logger == nil {
				t.Fatal("Expected non-nil logger")
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Expected debug message to be suppressed at warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Expected info message to be suppressed at warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Expected warn message in output")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Expected error message in output")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.WithComponent("delivery").Info("queued")

	output := buf.String()
	if !strings.Contains(output, `"component"`) || !strings.Contains(output, `"delivery"`) {
		t.Errorf("Expected component field in output, got %s", output)
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Level:        "info",
		Format:       "json",
		RedactValues: true,
		Writer:       &buf,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("submitting", "api_key", "sk-verysecretvalue", "url", "https://api.example.com")

	output := buf.String()
	if strings.Contains(output, "sk-verysecretvalue") {
		t.Error("Expected API key to be redacted from output")
	}
	if !strings.Contains(output, "api.example.com") {
		t.Error("Expected non-sensitive value to survive redaction")
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("submitting", "session_hint", "plainvalue")

	if !strings.Contains(buf.String(), "plainvalue") {
		t.Error("Expected value to pass through when redaction is disabled")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := WithEventID(context.Background(), "evt-123")
	ctx = WithDeviceID(ctx, "device-9")

	logger.InfoContext(ctx, "delivering")

	output := buf.String()
	if !strings.Contains(output, "evt-123") {
		t.Errorf("Expected event_id from context in output, got %s", output)
	}
	if !strings.Contains(output, "device-9") {
		t.Errorf("Expected device_id from context in output, got %s", output)
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()

	if got := GetEventID(ctx); got != "" {
		t.Errorf("Expected empty event ID on fresh context, got %q", got)
	}

	ctx = WithEventID(ctx, "evt-1")
	ctx = WithDeviceID(ctx, "dev-1")
	ctx = WithReplayID(ctx, "rpl-1")
	ctx = WithDeliveryID(ctx, "del-1")

	if got := GetEventID(ctx); got != "evt-1" {
		t.Errorf("Expected event ID 'evt-1', got %q", got)
	}
	if got := GetDeviceID(ctx); got != "dev-1" {
		t.Errorf("Expected device ID 'dev-1', got %q", got)
	}
	if got := GetReplayID(ctx); got != "rpl-1" {
		t.Errorf("Expected replay ID 'rpl-1', got %q", got)
	}
	if got := GetDeliveryID(ctx); got != "del-1" {
		t.Errorf("Expected delivery ID 'del-1', got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"info", "INFO", false},
		{"", "INFO", false},
		{"warning", "WARN", false},
		{"ERROR", "ERROR", false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		level, err := parseLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLevel(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q) failed: %v", tt.input, err)
			continue
		}
		if level.String() != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.input, level, tt.want)
		}
	}
}
