package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/attachment"
	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/event"
	"mercator-hq/callisto/pkg/store/pending"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// ReplayStore is the slice of the local event store the coordinator
// needs for replay execution.
type ReplayStore interface {
	Get(ctx context.Context, eventID string) (*event.UnencryptedPackage, error)
	Remove(ctx context.Context, eventID string) error
}

// CoordinatorConfig configures delivery and retry behavior.
type CoordinatorConfig struct {
	// DeviceID identifies this installation to the collector.
	DeviceID string

	// BaseDelay is the backoff unit. A row that has failed n retry
	// attempts becomes due again after BaseDelay * 2^n.
	// Default: 30 seconds.
	BaseDelay time.Duration

	// MaxAttempts is the retry cap. A row whose attempt count reaches
	// it is dropped permanently. Default: 5.
	MaxAttempts int
}

// ApplyDefaults fills zero fields with defaults.
func (c *CoordinatorConfig) ApplyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// Coordinator owns outbound delivery: it submits packages to the
// collector, converts transport failures into durable pending rows, and
// drains the retry queue on a single-flight schedule.
//
// Attachments are delivered under their own pending rows, so a failed
// blob upload retries independently and never re-sends the main event.
type Coordinator struct {
	collector   *Collector
	queue       pending.Store
	attachments *attachment.Service
	engine      *crypto.Engine
	replayStore ReplayStore
	metrics     *metrics.Collector
	config      *CoordinatorConfig
	logger      *slog.Logger

	now func() time.Time

	// scheduler state, see scheduler.go
	mu          sync.Mutex
	busy        bool
	wakePending bool
	timer       *time.Timer
	closed      bool
	passDone    sync.WaitGroup

	// single-shot replay continuations keyed by event ID
	contMu        sync.Mutex
	continuations map[string]ReplayContinuation
}

// NewCoordinator wires a coordinator. The collector client and queue are
// required; attachments, engine, replayStore, and metricsCollector may
// be nil when the corresponding feature is unused.
func NewCoordinator(
	collector *Collector,
	queue pending.Store,
	attachments *attachment.Service,
	engine *crypto.Engine,
	replayStore ReplayStore,
	metricsCollector *metrics.Collector,
	cfg *CoordinatorConfig,
) (*Coordinator, error) {
	if collector == nil {
		return nil, NewConfigurationError("collector client cannot be nil")
	}
	if queue == nil {
		return nil, NewConfigurationError("pending queue cannot be nil")
	}
	if cfg == nil {
		cfg = &CoordinatorConfig{}
	}
	cfg.ApplyDefaults()

	return &Coordinator{
		collector:     collector,
		queue:         queue,
		attachments:   attachments,
		engine:        engine,
		replayStore:   replayStore,
		metrics:       metricsCollector,
		config:        cfg,
		logger:        slog.Default().With("component", "delivery.coordinator"),
		now:           time.Now,
		continuations: make(map[string]ReplayContinuation),
	}, nil
}

// SendStatistical submits a stats-only package for a sampled success.
// A transport failure or rejection queues the package for retry; only
// queue storage errors are returned.
func (c *Coordinator) SendStatistical(ctx context.Context, stats *event.StatisticalPackage) error {
	resp, err := c.collector.SubmitStats(ctx, stats)
	if err == nil && resp.Success {
		c.metrics.RecordDelivery(KindStatistical, "accepted")
		return nil
	}

	payload := &deliveryPayload{Kind: KindStatistical, Stats: stats}
	return c.queueFailed(ctx, stats.EventID, payload, resp, err)
}

// SendError submits the combined statistical+encrypted payload for a
// captured failure, then uploads each attachment. Attachment failures
// queue per-attachment rows without touching the main submission.
func (c *Coordinator) SendError(ctx context.Context, stats *event.StatisticalPackage, encrypted *event.EncryptedPackage, atts []event.FileAttachment) error {
	resp, err := c.collector.SubmitError(ctx, encrypted, stats)
	if err != nil || !resp.Success {
		payload := &deliveryPayload{Kind: KindError, Stats: stats, Encrypted: encrypted}
		if qErr := c.queueFailed(ctx, stats.EventID, payload, resp, err); qErr != nil {
			return qErr
		}
		// The event is owed; its attachments are owed with it.
		return c.queueAttachments(ctx, atts)
	}

	c.metrics.RecordDelivery(KindError, "accepted")

	for _, att := range atts {
		if upErr := c.uploadAttachment(ctx, att); upErr != nil {
			c.logger.Warn("attachment upload failed, queued for retry",
				"event_id", att.EventID, "attachment_id", att.ID, "error", upErr)
			payload := &deliveryPayload{Kind: KindAttachment, Attachment: &att}
			if qErr := c.enqueue(ctx, att.EventID, payload, nil); qErr != nil {
				return qErr
			}
		}
	}
	return nil
}

// uploadAttachment announces one attachment's metadata, streams its
// decrypted content, and deletes the local blob once the collector has
// accepted both.
func (c *Coordinator) uploadAttachment(ctx context.Context, att event.FileAttachment) error {
	if c.attachments == nil || c.engine == nil {
		return NewConfigurationError("attachment upload requires an attachment service and engine")
	}

	enc, err := event.EncryptAttachment(att, c.engine.EncryptString)
	if err != nil {
		return err
	}

	data, err := c.attachments.ReadBlob(att)
	if err != nil {
		return err
	}

	if err := c.collector.UploadAttachmentMetadata(ctx, enc); err != nil {
		c.metrics.RecordDelivery(KindAttachment, "transport_error")
		return err
	}
	if err := c.collector.UploadAttachmentData(ctx, att.EventID, att.ID, data); err != nil {
		c.metrics.RecordDelivery(KindAttachment, "transport_error")
		return err
	}

	c.metrics.RecordDelivery(KindAttachment, "accepted")

	// Blob removal only after its own upload succeeded.
	if err := c.attachments.Delete(att); err != nil {
		c.logger.Warn("uploaded blob could not be removed", "attachment_id", att.ID, "error", err)
	}
	if usage, err := c.attachments.Usage(); err == nil {
		c.metrics.SetBlobBytes(usage)
	}
	return nil
}

// queueFailed records the failed submission outcome and queues the
// payload, honoring a server retry directive when one was returned.
func (c *Coordinator) queueFailed(ctx context.Context, eventID string, payload *deliveryPayload, resp *SubmitResponse, submitErr error) error {
	var directive *RetryDirective
	outcome := "transport_error"
	if submitErr == nil && resp != nil {
		outcome = "rejected"
		directive = resp.Retry
	}
	c.metrics.RecordDelivery(payload.Kind, outcome)

	if submitErr != nil {
		c.logger.Warn("submission failed, queued for retry",
			"event_id", eventID, "kind", payload.Kind, "error", submitErr)
	}
	return c.enqueue(ctx, eventID, payload, directive)
}

// queueAttachments queues one pending row per attachment.
func (c *Coordinator) queueAttachments(ctx context.Context, atts []event.FileAttachment) error {
	for _, att := range atts {
		payload := &deliveryPayload{Kind: KindAttachment, Attachment: &att}
		if err := c.enqueue(ctx, att.EventID, payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// enqueue creates a pending row due after one base delay, or at the
// directive's requested time when the server issued one.
func (c *Coordinator) enqueue(ctx context.Context, eventID string, payload *deliveryPayload, directive *RetryDirective) error {
	now := c.now()

	d := &pending.Delivery{
		ID:          uuid.New().String(),
		EventID:     eventID,
		CreatedAt:   now,
		NextRetryAt: now.Add(c.config.BaseDelay),
	}
	if directive != nil {
		d.RetryID = directive.RetryID
		d.NextRetryAt = now.Add(time.Duration(directive.DelayMs) * time.Millisecond)
		if directive.MaxAttempts > 0 {
			payload.MaxAttempts = directive.MaxAttempts
		}
	}

	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	d.Payload = data

	if err := c.queue.Enqueue(ctx, d); err != nil {
		return err
	}

	c.updateQueueGauge(ctx)
	c.armTimer()
	return nil
}

// updateQueueGauge refreshes the pending-rows metric.
func (c *Coordinator) updateQueueGauge(ctx context.Context) {
	if n, err := c.queue.Count(ctx); err == nil {
		c.metrics.SetPendingRows(n)
	}
}
