package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mercator-hq/callisto/pkg/event"
	"mercator-hq/callisto/pkg/policy"
)

// RetryDirective is a remote-issued override of local backoff. When a
// response carries one, the pending row is stamped with RetryID and its
// next attempt is scheduled DelayMs from now, regardless of attempt
// count. MaxAttempts, when positive, replaces the local attempt cap for
// that row.
type RetryDirective struct {
	RetryID     string `json:"retryId"`
	DelayMs     int64  `json:"delayMs"`
	MaxAttempts int    `json:"maxAttempts,omitempty"`
}

// SubmitResponse is the collector's answer to a package submission.
type SubmitResponse struct {
	Success bool            `json:"success"`
	Retry   *RetryDirective `json:"retry,omitempty"`
}

// ReplayRequest is one server-requested replay.
type ReplayRequest struct {
	ID          string            `json:"id"`
	EventID     string            `json:"eventId"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	RequestedAt time.Time         `json:"requestedAt"`
}

// ReplayResult reports a completed replay back to the collector.
type ReplayResult struct {
	ReplayID     string    `json:"replayId"`
	DeviceID     string    `json:"deviceId"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"statusCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CollectorConfig configures the collector client.
type CollectorConfig struct {
	// BaseURL is the collector endpoint root.
	BaseURL string

	// APIKey authenticates the client to the collector.
	APIKey string
}

// Collector speaks the JSON-over-HTTP collector protocol.
type Collector struct {
	transport Transport
	baseURL   string
	apiKey    string
}

// NewCollector creates a collector client.
func NewCollector(transport Transport, cfg CollectorConfig) (*Collector, error) {
	if transport == nil {
		return nil, NewConfigurationError("transport cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, NewConfigurationError("collector base URL cannot be empty")
	}
	return &Collector{
		transport: transport,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
	}, nil
}

// SubmitStats transmits a statistical package.
func (c *Collector) SubmitStats(ctx context.Context, stats *event.StatisticalPackage) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.post(ctx, "submit-stats", stats, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// errorSubmission is the combined payload for failed-request events.
type errorSubmission struct {
	Encrypted *event.EncryptedPackage   `json:"encrypted"`
	Stats     *event.StatisticalPackage `json:"stats"`
}

// SubmitError transmits the combined statistical+encrypted payload.
func (c *Collector) SubmitError(ctx context.Context, encrypted *event.EncryptedPackage, stats *event.StatisticalPackage) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.post(ctx, "submit-error", errorSubmission{Encrypted: encrypted, Stats: stats}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// attachmentMetadata is the upload-attachment-metadata payload.
type attachmentMetadata struct {
	EventID      string `json:"eventId"`
	AttachmentID string `json:"attachmentId"`
	FieldName    string `json:"fieldName"`
	Filename     string `json:"filename"`
	ContentType  string `json:"contentType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes"`
	Checksum     string `json:"checksum"`
}

// UploadAttachmentMetadata announces one attachment with its encrypted
// name fields and plaintext size and checksum.
func (c *Collector) UploadAttachmentMetadata(ctx context.Context, att event.EncryptedFileAttachment) error {
	meta := attachmentMetadata{
		EventID:      att.EventID,
		AttachmentID: att.ID,
		FieldName:    att.FieldName,
		Filename:     att.Filename,
		ContentType:  att.ContentType,
		SizeBytes:    att.SizeBytes,
		Checksum:     att.Checksum,
	}
	return c.post(ctx, "upload-attachment-metadata", meta, nil)
}

// UploadAttachmentData uploads the raw bytes of one attachment.
func (c *Collector) UploadAttachmentData(ctx context.Context, eventID, attachmentID string, data []byte) error {
	op := "upload-attachment-data"
	url := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, op, eventID, attachmentID)

	resp, err := c.transport.Do(ctx, &Request{
		Method:  "POST",
		URL:     url,
		Headers: c.headers("application/octet-stream"),
		Body:    data,
	})
	if err != nil {
		return NewTransportError(op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewTransportError(op, resp.StatusCode, fmt.Errorf("collector rejected upload"))
	}
	return nil
}

// FetchPolicy retrieves the remote policy document. It implements
// policy.Fetcher.
func (c *Collector) FetchPolicy(ctx context.Context) (*policy.Policy, error) {
	op := "fetch-policy"
	resp, err := c.transport.Do(ctx, &Request{
		Method:  "GET",
		URL:     c.baseURL + "/" + op,
		Headers: c.headers(""),
	})
	if err != nil {
		return nil, NewTransportError(op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewTransportError(op, resp.StatusCode, fmt.Errorf("collector rejected request"))
	}

	// The document is open and extensible: decode the known gate, then
	// keep everything else in Extras.
	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, NewTransportError(op, resp.StatusCode, fmt.Errorf("decode policy: %w", err))
	}

	p := &policy.Policy{}
	if enabled, ok := raw["replayEnabled"].(bool); ok {
		p.ReplayEnabled = enabled
	}
	delete(raw, "replayEnabled")
	if len(raw) > 0 {
		p.Extras = raw
	}

	return p, nil
}

// pollResponse is the poll-pending-replay answer.
type pollResponse struct {
	Pending bool           `json:"pending"`
	Request *ReplayRequest `json:"request,omitempty"`
}

// PollPendingReplay asks whether the collector has a replay queued for
// this device. It returns nil when nothing is pending.
func (c *Collector) PollPendingReplay(ctx context.Context, deviceID string) (*ReplayRequest, error) {
	op := "poll-pending-replay"
	resp, err := c.transport.Do(ctx, &Request{
		Method:  "GET",
		URL:     fmt.Sprintf("%s/%s?deviceId=%s", c.baseURL, op, deviceID),
		Headers: c.headers(""),
	})
	if err != nil {
		return nil, NewTransportError(op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewTransportError(op, resp.StatusCode, fmt.Errorf("collector rejected request"))
	}

	var poll pollResponse
	if err := json.Unmarshal(resp.Body, &poll); err != nil {
		return nil, NewTransportError(op, resp.StatusCode, fmt.Errorf("decode poll response: %w", err))
	}
	if !poll.Pending {
		return nil, nil
	}
	return poll.Request, nil
}

// ReportReplayResult reports the outcome of an executed replay.
func (c *Collector) ReportReplayResult(ctx context.Context, result *ReplayResult) error {
	return c.post(ctx, "report-replay-result", result, nil)
}

// post issues one JSON POST and optionally decodes the response into
// out. Unreachable hosts and non-2xx statuses become TransportErrors.
func (c *Collector) post(ctx context.Context, op string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}

	resp, err := c.transport.Do(ctx, &Request{
		Method:  "POST",
		URL:     c.baseURL + "/" + op,
		Headers: c.headers("application/json"),
		Body:    body,
	})
	if err != nil {
		return NewTransportError(op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewTransportError(op, resp.StatusCode, fmt.Errorf("collector rejected request"))
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return NewTransportError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// headers builds the common request headers.
func (c *Collector) headers(contentType string) map[string]string {
	headers := make(map[string]string, 2)
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if c.apiKey != "" {
		headers["X-Api-Key"] = c.apiKey
	}
	return headers
}
