package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/attachment"
	"mercator-hq/callisto/pkg/event"
)

// Report describes one observed outgoing request outcome supplied by
// the instrumentation hook.
//
// RequestBody and ResponseBody are JSON-shaped values: nil, string,
// float64, bool, map[string]any, or []any. For multipart requests, set
// MultipartBody and ContentType instead of RequestBody; the binary
// parts are extracted into encrypted blobs and a rebuilt body is
// returned for the request to proceed with.
type Report struct {
	Method     string
	URL        string
	StatusCode int

	ErrorKind    string
	ErrorMessage string

	RequestHeaders  map[string]string
	RequestBody     any
	ResponseHeaders map[string]string
	ResponseBody    any

	// MultipartBody is the outgoing multipart stream, consumed during
	// capture. ContentType must carry the multipart boundary.
	MultipartBody io.Reader
	ContentType   string

	Duration time.Duration
	Extras   map[string]any
}

// CaptureResult reports what a capture produced.
type CaptureResult struct {
	// EventID identifies the captured event.
	EventID string

	// RebuiltBody replaces the original multipart body when binary
	// parts were extracted; the original stream has been consumed. Nil
	// when the request had no binary parts.
	RebuiltBody []byte

	// RebuiltContentType carries the new multipart boundary.
	RebuiltContentType string

	// Skipped lists binary parts dropped by the attachment limits.
	Skipped []attachment.SkippedFile
}

// CaptureFailure captures a failed request outcome. The report is
// redacted, transformed into its statistical and encrypted packages,
// optionally persisted in plaintext for replay (decided by the cached
// policy at capture time), and handed to the delivery coordinator.
//
// Transport failures never surface here: they become durable pending
// rows drained by the retry scheduler. Local persistence problems
// degrade to a logged drop rather than failing the host's request path.
// Only misuse (closed client) and encryption failures return an error.
func (c *Client) CaptureFailure(ctx context.Context, report *Report) (*CaptureResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}

	ev, result := c.buildEvent(report, false)

	stats := event.ToStatistical(ev)
	encrypted, err := event.ToEncrypted(ev, c.engine.EncryptString)
	if err != nil {
		c.metrics.RecordCapture("encrypt_error")
		return nil, fmt.Errorf("failed to encrypt event %s: %w", ev.ID, err)
	}

	// Replay retention is decided here, at capture time. A policy flip
	// later never creates rows retroactively.
	if c.policies.ReplayEnabled() {
		if err := c.replays.Store(ctx, event.ToUnencrypted(ev)); err != nil {
			c.logger.Warn("Failed to persist replay copy",
				"event_id", ev.ID,
				"error", err,
			)
		} else if n, err := c.replays.Count(ctx); err == nil {
			c.metrics.SetReplayRows(n)
		}
	}

	c.metrics.RecordCapture("failure")

	if err := c.coordinator.SendError(ctx, stats, encrypted, ev.Attachments); err != nil {
		// Queue storage failure: the event is lost, the host is not.
		c.logger.Error("Failed to hand event to delivery",
			"event_id", ev.ID,
			"error", err,
		)
	}

	return result, nil
}

// CaptureSuccess reports a successful request outcome, sampled by the
// configured success sample rate. Unsampled calls are free. The
// returned event ID is empty when the call was not sampled.
func (c *Client) CaptureSuccess(ctx context.Context, report *Report) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if report == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	rate := c.config.Client.SuccessSampleRate
	if rate <= 0 || c.sample() >= rate {
		return "", nil
	}

	ev, _ := c.buildEvent(report, true)

	c.metrics.RecordCapture("success")

	if err := c.coordinator.SendStatistical(ctx, event.ToStatistical(ev)); err != nil {
		c.logger.Error("Failed to hand stats to delivery",
			"event_id", ev.ID,
			"error", err,
		)
	}

	return ev.ID, nil
}

// buildEvent redacts the report and assembles the immutable captured
// event, extracting multipart attachments when present.
func (c *Client) buildEvent(report *Report, success bool) (*event.CapturedEvent, *CaptureResult) {
	eventID := event.NewID()
	result := &CaptureResult{EventID: eventID}
	redactor := c.currentRedactor()

	ev := &event.CapturedEvent{
		ID:        eventID,
		Timestamp: time.Now().UTC(),

		Method:     report.Method,
		URL:        redactor.RedactURL(report.URL),
		StatusCode: report.StatusCode,

		ErrorKind:    report.ErrorKind,
		ErrorMessage: report.ErrorMessage,

		RequestHeaders:  redactor.RedactHeaders(report.RequestHeaders),
		RequestBody:     redactor.RedactBody(report.RequestBody),
		ResponseHeaders: redactor.RedactHeaders(report.ResponseHeaders),
		ResponseBody:    redactor.RedactBody(report.ResponseBody),

		Duration:    report.Duration,
		Environment: c.config.Client.Environment,
		AppVersion:  c.config.Client.AppVersion,
		DeviceID:    c.deviceID,
		Extras:      report.Extras,

		Success: success,
	}

	if report.MultipartBody != nil && strings.HasPrefix(report.ContentType, "multipart/") {
		res, err := c.attachments.Extract(eventID, report.ContentType, report.MultipartBody)
		if err != nil {
			// Unparseable body: recoverable, the event is still captured.
			c.logger.Warn("Attachment extraction failed",
				"event_id", eventID,
				"error", err,
			)
		} else if res != nil {
			ev.Attachments = res.Attachments
			ev.FormFields = res.FormFields
			result.RebuiltBody = res.RebuiltBody
			result.RebuiltContentType = res.RebuiltContentType
			result.Skipped = res.Skipped
		}
	}

	return ev, result
}
