package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/event"
)

// fakeReplayStore holds unencrypted packages in memory.
type fakeReplayStore struct {
	events  map[string]*event.UnencryptedPackage
	removed []string
	getErr  error
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{events: make(map[string]*event.UnencryptedPackage)}
}

func (s *fakeReplayStore) Get(ctx context.Context, eventID string) (*event.UnencryptedPackage, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.events[eventID], nil
}

func (s *fakeReplayStore) Remove(ctx context.Context, eventID string) error {
	delete(s.events, eventID)
	s.removed = append(s.removed, eventID)
	return nil
}

func storedEvent() *event.UnencryptedPackage {
	return &event.UnencryptedPackage{
		EventID:    "evt-1",
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Method:     "POST",
		URL:        "https://api.example.com/orders",
		StatusCode: 502,
		RequestHeaders: map[string]string{
			"Content-Type": "application/json",
		},
		RequestBody: map[string]any{"item": "widget", "qty": float64(3)},
		DeviceID:    "device-1",
	}
}

func newReplayHarness(t *testing.T) (*testHarness, *fakeReplayStore) {
	t.Helper()
	h := newTestHarness(t, acceptAll(t))
	store := newFakeReplayStore()
	h.coord.replayStore = store
	return h, store
}

func TestExecuteReplay_Success(t *testing.T) {
	h, store := newReplayHarness(t)
	store.events["evt-1"] = storedEvent()

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		return &Response{StatusCode: 201}, nil
	}}

	var gotResp *Response
	fired := 0
	h.coord.RegisterContinuation("evt-1", func(resp *Response, err error) {
		fired++
		gotResp = resp
	})

	req := &ReplayRequest{ID: "rpl-1", EventID: "evt-1"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	// The original request went through the caller's transport.
	issued := target.seen()
	if len(issued) != 1 {
		t.Fatalf("Expected 1 replayed request, got %d", len(issued))
	}
	if issued[0].Method != "POST" || issued[0].URL != "https://api.example.com/orders" {
		t.Errorf("Expected original method and URL, got %s %s", issued[0].Method, issued[0].URL)
	}
	var body map[string]any
	if err := json.Unmarshal(issued[0].Body, &body); err != nil {
		t.Fatalf("decode replayed body failed: %v", err)
	}
	if body["item"] != "widget" {
		t.Errorf("Expected original body replayed, got %v", body)
	}

	// The outcome was reported to the collector.
	var reported *ReplayResult
	for _, creq := range h.transport.seen() {
		if strings.Contains(creq.URL, "report-replay-result") {
			reported = &ReplayResult{}
			if err := json.Unmarshal(creq.Body, reported); err != nil {
				t.Fatalf("decode report failed: %v", err)
			}
		}
	}
	if reported == nil {
		t.Fatal("Expected replay result report")
	}
	if !reported.Success || reported.StatusCode != 201 || reported.ReplayID != "rpl-1" {
		t.Errorf("Unexpected report: %+v", reported)
	}
	if reported.DeviceID != "device-1" {
		t.Errorf("Expected device id in report, got %q", reported.DeviceID)
	}

	// Local copy removed, continuation fired exactly once.
	if len(store.removed) != 1 || store.removed[0] != "evt-1" {
		t.Errorf("Expected local event removed after success, got %v", store.removed)
	}
	if fired != 1 {
		t.Errorf("Expected continuation fired once, got %d", fired)
	}
	if gotResp == nil || gotResp.StatusCode != 201 {
		t.Error("Expected continuation to receive the replay response")
	}
}

func TestExecuteReplay_FailureKeepsLocalCopy(t *testing.T) {
	h, store := newReplayHarness(t)
	store.events["evt-1"] = storedEvent()

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		return &Response{StatusCode: 500}, nil
	}}

	req := &ReplayRequest{ID: "rpl-2", EventID: "evt-1"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	if len(store.removed) != 0 {
		t.Error("Expected local event kept after failed replay")
	}

	for _, creq := range h.transport.seen() {
		if strings.Contains(creq.URL, "report-replay-result") {
			var reported ReplayResult
			if err := json.Unmarshal(creq.Body, &reported); err != nil {
				t.Fatalf("decode report failed: %v", err)
			}
			if reported.Success {
				t.Error("Expected failure report for 500 response")
			}
			if reported.StatusCode != 500 {
				t.Errorf("Expected status 500 in report, got %d", reported.StatusCode)
			}
		}
	}
}

func TestExecuteReplay_TransportError(t *testing.T) {
	h, store := newReplayHarness(t)
	store.events["evt-1"] = storedEvent()

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		return nil, errors.New("dns failure")
	}}

	var contErr error
	h.coord.RegisterContinuation("evt-1", func(resp *Response, err error) {
		contErr = err
	})

	req := &ReplayRequest{ID: "rpl-3", EventID: "evt-1"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	if contErr == nil || !strings.Contains(contErr.Error(), "dns failure") {
		t.Errorf("Expected continuation to receive transport error, got %v", contErr)
	}
	if len(store.removed) != 0 {
		t.Error("Expected local event kept after transport error")
	}
}

func TestExecuteReplay_MissingEvent(t *testing.T) {
	h, _ := newReplayHarness(t)

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		t.Error("Expected no replay attempt for missing event")
		return nil, errors.New("unreachable")
	}}

	req := &ReplayRequest{ID: "rpl-4", EventID: "evt-gone"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	var reported ReplayResult
	found := false
	for _, creq := range h.transport.seen() {
		if strings.Contains(creq.URL, "report-replay-result") {
			found = true
			if err := json.Unmarshal(creq.Body, &reported); err != nil {
				t.Fatalf("decode report failed: %v", err)
			}
		}
	}
	if !found {
		t.Fatal("Expected failure report for missing event")
	}
	if reported.Success || reported.ErrorMessage == "" {
		t.Errorf("Expected failure report with message, got %+v", reported)
	}
}

func TestExecuteReplay_StoreErrorSurfaces(t *testing.T) {
	h, store := newReplayHarness(t)
	store.events["evt-1"] = storedEvent()
	store.getErr = errors.New("database disk image is malformed")

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		t.Error("Expected no replay attempt after a storage error")
		return nil, errors.New("unreachable")
	}}

	req := &ReplayRequest{ID: "rpl-5", EventID: "evt-1"}
	err := h.coord.ExecuteReplay(context.Background(), req, target)
	if err == nil {
		t.Fatal("Expected storage error to surface from ExecuteReplay")
	}
	if !errors.Is(err, store.getErr) {
		t.Errorf("Expected wrapped storage error, got %v", err)
	}

	// A read failure is not a missing event: nothing is reported.
	for _, creq := range h.transport.seen() {
		if strings.Contains(creq.URL, "report-replay-result") {
			t.Error("Expected no replay result report after a storage error")
		}
	}
}

func TestExecuteReplay_StringBody(t *testing.T) {
	h, store := newReplayHarness(t)
	pkg := storedEvent()
	pkg.RequestBody = "raw text payload"
	store.events["evt-1"] = pkg

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	}}

	req := &ReplayRequest{ID: "rpl-5", EventID: "evt-1"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	if got := string(target.seen()[0].Body); got != "raw text payload" {
		t.Errorf("Expected string body replayed verbatim, got %q", got)
	}
}

func TestExecuteReplay_Validation(t *testing.T) {
	h, _ := newReplayHarness(t)

	if err := h.coord.ExecuteReplay(context.Background(), nil, &fakeTransport{}); err == nil {
		t.Error("Expected error for nil request")
	}
	if err := h.coord.ExecuteReplay(context.Background(), &ReplayRequest{ID: "r", EventID: "e"}, nil); err == nil {
		t.Error("Expected error for nil transport")
	}

	h.coord.replayStore = nil
	err := h.coord.ExecuteReplay(context.Background(), &ReplayRequest{ID: "r", EventID: "e"}, &fakeTransport{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigurationError without replay store, got %v", err)
	}
}

func TestContinuation_RemoveBeforeFire(t *testing.T) {
	h, store := newReplayHarness(t)
	store.events["evt-1"] = storedEvent()

	fired := false
	h.coord.RegisterContinuation("evt-1", func(resp *Response, err error) {
		fired = true
	})
	h.coord.RemoveContinuation("evt-1")

	target := &fakeTransport{handler: func(req *Request) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	}}
	req := &ReplayRequest{ID: "rpl-6", EventID: "evt-1"}
	if err := h.coord.ExecuteReplay(context.Background(), req, target); err != nil {
		t.Fatalf("ExecuteReplay failed: %v", err)
	}

	if fired {
		t.Error("Expected removed continuation not to fire")
	}
}

func TestCheckForReplay(t *testing.T) {
	h, _ := newReplayHarness(t)
	h.transport.handler = func(req *Request) (*Response, error) {
		if !strings.Contains(req.URL, "poll-pending-replay") {
			return &Response{StatusCode: 200}, nil
		}
		return jsonResponse(t, 200, pollResponse{
			Pending: true,
			Request: &ReplayRequest{ID: "rpl-9", EventID: "evt-1"},
		}), nil
	}

	req, err := h.coord.CheckForReplay(context.Background())
	if err != nil {
		t.Fatalf("CheckForReplay failed: %v", err)
	}
	if req == nil || req.ID != "rpl-9" {
		t.Errorf("Expected pending replay rpl-9, got %+v", req)
	}
}
