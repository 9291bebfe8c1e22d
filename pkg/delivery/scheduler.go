package delivery

import (
	"context"
	"time"

	"mercator-hq/callisto/pkg/store/pending"
)

// Start arms the retry scheduler from whatever rows survived the last
// process. Rows already due are attempted immediately.
func (c *Coordinator) Start() error {
	ctx := context.Background()

	rows, err := c.queue.All(ctx)
	if err != nil {
		return err
	}
	c.metrics.SetPendingRows(len(rows))
	if len(rows) == 0 {
		return nil
	}

	c.wake()
	return nil
}

// Wake triggers an immediate pass over due rows, for hosts that observe
// connectivity changes. At most one pass runs at a time; a wake arriving
// during a pass coalesces into exactly one follow-up pass.
func (c *Coordinator) Wake() {
	c.wake()
}

// Close stops the timer and waits for an in-flight pass to finish.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.passDone.Wait()
	return nil
}

// wake starts the pass loop unless one is already running.
func (c *Coordinator) wake() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.busy {
		c.wakePending = true
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.mu.Unlock()

	c.passDone.Add(1)
	go c.runPasses()
}

// runPasses drains passes until no wake arrived during the last one,
// then re-arms the timer for the earliest remaining row.
func (c *Coordinator) runPasses() {
	defer c.passDone.Done()

	ctx := context.Background()
	for {
		c.processPass(ctx)

		c.mu.Lock()
		if c.wakePending && !c.closed {
			c.wakePending = false
			c.mu.Unlock()
			continue
		}
		c.busy = false
		c.mu.Unlock()

		c.armTimer()
		return
	}
}

// processPass attempts every due row once, in creation order. Outcomes
// are independent: one row's failure never blocks the rest of the pass.
func (c *Coordinator) processPass(ctx context.Context) {
	c.metrics.RecordRetryPass()

	rows, err := c.queue.Due(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to load due rows", "error", err)
		return
	}

	for _, row := range rows {
		c.attemptRow(ctx, row)
	}

	c.updateQueueGauge(ctx)
}

// attemptRow retries one pending row and settles its fate: removal on
// acceptance, a directive-stamped or backed-off update on failure, or a
// permanent drop at the attempt cap.
func (c *Coordinator) attemptRow(ctx context.Context, row *pending.Delivery) {
	payload, err := decodePayload(row.Payload)
	if err != nil {
		c.logger.Error("dropping undecodable pending row", "delivery_id", row.ID, "error", err)
		c.metrics.RecordDrop("decode_error")
		if delErr := c.queue.Delete(ctx, row.ID); delErr != nil {
			c.logger.Error("failed to delete pending row", "delivery_id", row.ID, "error", delErr)
		}
		return
	}

	var resp *SubmitResponse
	var attemptErr error
	switch payload.Kind {
	case KindError:
		resp, attemptErr = c.collector.SubmitError(ctx, payload.Encrypted, payload.Stats)
	case KindStatistical:
		resp, attemptErr = c.collector.SubmitStats(ctx, payload.Stats)
	case KindAttachment:
		attemptErr = c.uploadAttachment(ctx, *payload.Attachment)
	default:
		c.logger.Error("dropping pending row with unknown kind", "delivery_id", row.ID, "kind", payload.Kind)
		c.metrics.RecordDrop("decode_error")
		if delErr := c.queue.Delete(ctx, row.ID); delErr != nil {
			c.logger.Error("failed to delete pending row", "delivery_id", row.ID, "error", delErr)
		}
		return
	}

	if attemptErr == nil && (resp == nil || resp.Success) {
		if payload.Kind != KindAttachment {
			// uploadAttachment records its own outcome
			c.metrics.RecordDelivery(payload.Kind, "accepted")
		}
		if delErr := c.queue.Delete(ctx, row.ID); delErr != nil {
			c.logger.Error("failed to delete delivered row", "delivery_id", row.ID, "error", delErr)
		}
		return
	}

	if payload.Kind != KindAttachment {
		outcome := "transport_error"
		if attemptErr == nil {
			outcome = "rejected"
		}
		c.metrics.RecordDelivery(payload.Kind, outcome)
	}

	row.AttemptCount++

	// A server directive replaces local backoff for this attempt and
	// may replace the attempt cap for the row's remaining life.
	rewritePayload := false
	if attemptErr == nil && resp != nil && resp.Retry != nil {
		row.RetryID = resp.Retry.RetryID
		row.NextRetryAt = c.now().Add(time.Duration(resp.Retry.DelayMs) * time.Millisecond)
		if resp.Retry.MaxAttempts > 0 && resp.Retry.MaxAttempts != payload.MaxAttempts {
			payload.MaxAttempts = resp.Retry.MaxAttempts
			rewritePayload = true
		}
	} else {
		row.NextRetryAt = c.now().Add(backoffDelay(c.config.BaseDelay, row.AttemptCount))
	}

	maxAttempts := c.config.MaxAttempts
	if payload.MaxAttempts > 0 {
		maxAttempts = payload.MaxAttempts
	}
	if row.AttemptCount >= maxAttempts {
		// The cap is final: the row disappears without surfacing an
		// error to the host application.
		c.logger.Warn("dropping pending row, attempt cap reached",
			"delivery_id", row.ID, "event_id", row.EventID, "kind", payload.Kind, "attempts", row.AttemptCount)
		c.metrics.RecordDrop("attempts_exhausted")
		if delErr := c.queue.Delete(ctx, row.ID); delErr != nil {
			c.logger.Error("failed to delete exhausted row", "delivery_id", row.ID, "error", delErr)
		}
		return
	}

	if rewritePayload {
		if data, encErr := encodePayload(payload); encErr == nil {
			row.Payload = data
		}
	}
	if updErr := c.queue.Update(ctx, row); updErr != nil {
		c.logger.Error("failed to update pending row", "delivery_id", row.ID, "error", updErr)
	}
}

// armTimer schedules a wake for the earliest remaining row. With an
// empty queue the scheduler stays idle until the next enqueue.
func (c *Coordinator) armTimer() {
	ctx := context.Background()

	rows, err := c.queue.All(ctx)
	if err != nil {
		c.logger.Error("failed to load rows for scheduling", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	earliest := rows[0].NextRetryAt
	for _, row := range rows[1:] {
		if row.NextRetryAt.Before(earliest) {
			earliest = row.NextRetryAt
		}
	}

	delay := earliest.Sub(c.now())
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.wake)
}

// backoffDelay is base * 2^attempts, with the exponent clamped to keep
// the shift in range.
func backoffDelay(base time.Duration, attempts int) time.Duration {
	if attempts > 16 {
		attempts = 16
	}
	return base * time.Duration(1<<attempts)
}
