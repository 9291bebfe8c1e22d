package main

import (
	"testing"

	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/event"
)

func testEngine(t *testing.T) *crypto.Engine {
	t.Helper()

	engine, err := crypto.NewEngine([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestRecoverPackage_RoundTrip(t *testing.T) {
	engine := testEngine(t)

	ev := &event.CapturedEvent{
		ID:         "evt-1",
		Method:     "POST",
		URL:        "https://api.example.com/orders",
		StatusCode: 502,
		ErrorKind:  "http_error",
		RequestHeaders: map[string]string{
			"Content-Type": "application/json",
		},
		RequestBody: map[string]any{"item": "widget", "count": float64(3)},
	}

	pkg, err := event.ToEncrypted(ev, engine.EncryptString)
	if err != nil {
		t.Fatalf("failed to build encrypted package: %v", err)
	}

	rec, err := recoverPackage(engine, pkg)
	if err != nil {
		t.Fatalf("recoverPackage failed: %v", err)
	}

	if rec.EventID != "evt-1" {
		t.Errorf("expected event ID evt-1, got %q", rec.EventID)
	}
	if rec.RequestHeaders["Content-Type"] != "application/json" {
		t.Errorf("expected recovered header, got %v", rec.RequestHeaders)
	}
	body, ok := rec.RequestBody.(map[string]any)
	if !ok {
		t.Fatalf("expected map body, got %T", rec.RequestBody)
	}
	if body["item"] != "widget" {
		t.Errorf("expected recovered body field, got %v", body["item"])
	}
	if body["count"] != float64(3) {
		t.Errorf("expected numeric body field, got %v", body["count"])
	}
}

func TestRecoverPackage_StringBody(t *testing.T) {
	engine := testEngine(t)

	ev := &event.CapturedEvent{
		ID:          "evt-2",
		Method:      "POST",
		URL:         "https://api.example.com/raw",
		RequestBody: "plain text payload",
	}

	pkg, err := event.ToEncrypted(ev, engine.EncryptString)
	if err != nil {
		t.Fatalf("failed to build encrypted package: %v", err)
	}

	rec, err := recoverPackage(engine, pkg)
	if err != nil {
		t.Fatalf("recoverPackage failed: %v", err)
	}

	if rec.RequestBody != "plain text payload" {
		t.Errorf("expected string body back, got %v", rec.RequestBody)
	}
}

func TestRecoverPackage_WrongKey(t *testing.T) {
	engine := testEngine(t)

	ev := &event.CapturedEvent{
		ID:             "evt-3",
		Method:         "GET",
		URL:            "https://api.example.com",
		RequestHeaders: map[string]string{"X-Test": "1"},
	}

	pkg, err := event.ToEncrypted(ev, engine.EncryptString)
	if err != nil {
		t.Fatalf("failed to build encrypted package: %v", err)
	}

	other, err := crypto.NewEngine([]byte("another-key-material"))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if _, err := recoverPackage(other, pkg); err == nil {
		t.Error("expected error decrypting with the wrong key")
	}
}

func TestPayloadKind(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"error kind", `{"kind":"error"}`, "error"},
		{"attachment kind", `{"kind":"attachment","attachment":{}}`, "attachment"},
		{"missing kind", `{}`, "unknown"},
		{"garbage", `not json`, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payloadKind([]byte(tt.payload)); got != tt.want {
				t.Errorf("payloadKind(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"pending", "prune", "decrypt", "version"} {
		if !names[want] {
			t.Errorf("expected %q command to be registered", want)
		}
	}
}
