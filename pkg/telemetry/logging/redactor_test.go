package logging

import (
	"strings"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor(nil)

	tests := []struct {
		name      string
		input     string
		mustLose  string
		mustKeep  string
	}{
		{
			name:     "sk API key",
			input:    "failed with key sk-abc123def456",
			mustLose: "sk-abc123def456",
			mustKeep: "failed with key",
		},
		{
			name:     "bearer token",
			input:    "header was Bearer eyJhbGciOiJIUzI1NiJ9.payload",
			mustLose: "eyJhbGciOiJIUzI1NiJ9",
			mustKeep: "header was",
		},
		{
			name:     "basic auth",
			input:    "sent Basic dXNlcjpwYXNz",
			mustLose: "dXNlcjpwYXNz",
			mustKeep: "sent",
		},
		{
			name:     "password assignment",
			input:    "config had password=hunter2 set",
			mustLose: "hunter2",
			mustKeep: "config had",
		},
		{
			name:     "email local part",
			input:    "reported by alice@example.com",
			mustLose: "alice@",
			mustKeep: "example.com",
		},
		{
			name:     "clean string untouched",
			input:    "connection refused to collector",
			mustKeep: "connection refused to collector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactString(tt.input)
			if tt.mustLose != "" && strings.Contains(got, tt.mustLose) {
				t.Errorf("Expected %q to be redacted, got %q", tt.mustLose, got)
			}
			if tt.mustKeep != "" && !strings.Contains(got, tt.mustKeep) {
				t.Errorf("Expected %q to survive, got %q", tt.mustKeep, got)
			}
		})
	}
}

func TestRedactor_RedactArgs(t *testing.T) {
	r := NewRedactor(nil)

	args := r.RedactArgs("authorization", "Bearer secrettoken", "status", 502, "url", "https://collector.example.com")

	if args[1] == "Bearer secrettoken" {
		t.Error("Expected value under sensitive key to be redacted")
	}
	if args[3] != 502 {
		t.Errorf("Expected non-string value untouched, got %v", args[3])
	}
	if args[5] != "https://collector.example.com" {
		t.Errorf("Expected clean URL untouched, got %v", args[5])
	}
}

func TestRedactor_SensitiveKeyPrefix(t *testing.T) {
	r := NewRedactor(nil)

	args := r.RedactArgs("encryption_key", "0123456789abcdef")

	got, ok := args[1].(string)
	if !ok {
		t.Fatalf("Expected string value, got %T", args[1])
	}
	if got != "0123***" {
		t.Errorf("Expected prefix-redacted value '0123***', got %q", got)
	}
}

func TestRedactor_ShortSensitiveValue(t *testing.T) {
	r := NewRedactor(nil)

	args := r.RedactArgs("token", "abc")
	if args[1] != "***" {
		t.Errorf("Expected short sensitive value fully masked, got %v", args[1])
	}

	args = r.RedactArgs("token", "")
	if args[1] != "" {
		t.Errorf("Expected empty value to stay empty, got %v", args[1])
	}
}

func TestRedactor_CustomPatterns(t *testing.T) {
	r := NewRedactor([]Pattern{
		{Name: "device_serial", Pattern: `SER-\d{6}`, Replacement: "SER-******"},
		{Name: "broken", Pattern: `([`, Replacement: "x"},
	})

	got := r.RedactString("device SER-123456 failed")
	if strings.Contains(got, "SER-123456") {
		t.Errorf("Expected custom pattern to apply, got %q", got)
	}
	if !strings.Contains(got, "SER-******") {
		t.Errorf("Expected replacement in output, got %q", got)
	}
}

func TestRedactor_OddArgCount(t *testing.T) {
	r := NewRedactor(nil)

	args := r.RedactArgs("lonely_key")
	if len(args) != 1 || args[0] != "lonely_key" {
		t.Errorf("Expected odd arg list passed through, got %v", args)
	}
}
