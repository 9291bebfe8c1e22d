package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"mercator-hq/callisto/pkg/event"
)

// ReplayContinuation receives the outcome of a replayed request. It is
// invoked at most once and unregistered on invocation.
type ReplayContinuation func(resp *Response, err error)

// RegisterContinuation installs a single-shot callback for the next
// replay of the given event. A later registration for the same event
// replaces the earlier one.
func (c *Coordinator) RegisterContinuation(eventID string, fn ReplayContinuation) {
	c.contMu.Lock()
	defer c.contMu.Unlock()
	c.continuations[eventID] = fn
}

// RemoveContinuation discards a registered callback before it fires.
func (c *Coordinator) RemoveContinuation(eventID string) {
	c.contMu.Lock()
	defer c.contMu.Unlock()
	delete(c.continuations, eventID)
}

// takeContinuation claims the callback for an event, if any.
func (c *Coordinator) takeContinuation(eventID string) ReplayContinuation {
	c.contMu.Lock()
	defer c.contMu.Unlock()
	fn := c.continuations[eventID]
	delete(c.continuations, eventID)
	return fn
}

// CheckForReplay asks the collector whether a replay is queued for this
// device. It returns nil when nothing is pending.
func (c *Coordinator) CheckForReplay(ctx context.Context) (*ReplayRequest, error) {
	return c.collector.PollPendingReplay(ctx, c.config.DeviceID)
}

// ExecuteReplay re-issues a stored event's original request through the
// given transport, reports the outcome to the collector, and removes the
// local copy once the replay succeeded. The registered continuation, if
// any, fires exactly once with the outcome.
//
// A missing local event is reported as a failed replay, not returned as
// an error: the collector asked for something this device no longer has.
func (c *Coordinator) ExecuteReplay(ctx context.Context, req *ReplayRequest, transport Transport) error {
	if req == nil {
		return NewConfigurationError("replay request cannot be nil")
	}
	if transport == nil {
		return NewConfigurationError("replay transport cannot be nil")
	}
	if c.replayStore == nil {
		return NewConfigurationError("replay requires a local event store")
	}

	pkg, err := c.replayStore.Get(ctx, req.EventID)
	if err != nil {
		c.metrics.RecordReplay("failure")
		return fmt.Errorf("failed to load event for replay: %w", err)
	}
	if pkg == nil {
		c.logger.Warn("replay requested for unavailable event", "replay_id", req.ID, "event_id", req.EventID)
		c.metrics.RecordReplay("missing_event")
		c.report(ctx, &ReplayResult{
			ReplayID:     req.ID,
			DeviceID:     c.config.DeviceID,
			Success:      false,
			ErrorMessage: "event not available on device",
			Timestamp:    c.now(),
		})
		return nil
	}

	replayReq, err := c.buildReplayRequest(pkg)
	if err != nil {
		c.metrics.RecordReplay("failure")
		c.report(ctx, &ReplayResult{
			ReplayID:     req.ID,
			DeviceID:     c.config.DeviceID,
			Success:      false,
			ErrorMessage: err.Error(),
			Timestamp:    c.now(),
		})
		return err
	}

	resp, doErr := transport.Do(ctx, replayReq)

	result := &ReplayResult{
		ReplayID:  req.ID,
		DeviceID:  c.config.DeviceID,
		Timestamp: c.now(),
	}
	switch {
	case doErr != nil:
		result.ErrorMessage = doErr.Error()
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		result.Success = true
		result.StatusCode = resp.StatusCode
	default:
		result.StatusCode = resp.StatusCode
		result.ErrorMessage = fmt.Sprintf("replay returned status %d", resp.StatusCode)
	}

	c.report(ctx, result)

	if result.Success {
		c.metrics.RecordReplay("success")
		if remErr := c.replayStore.Remove(ctx, req.EventID); remErr != nil {
			c.logger.Error("failed to remove replayed event", "event_id", req.EventID, "error", remErr)
		}
	} else {
		c.metrics.RecordReplay("failure")
	}

	if fn := c.takeContinuation(req.EventID); fn != nil {
		fn(resp, doErr)
	}
	return nil
}

// buildReplayRequest reconstructs the original outgoing request. Events
// captured with attachments get their multipart body rebuilt from the
// stored form fields and decrypted blobs.
func (c *Coordinator) buildReplayRequest(pkg *event.UnencryptedPackage) (*Request, error) {
	headers := make(map[string]string, len(pkg.RequestHeaders))
	for name, value := range pkg.RequestHeaders {
		headers[name] = value
	}

	var body []byte
	if len(pkg.Attachments) > 0 || len(pkg.FormFields) > 0 {
		if c.attachments == nil {
			return nil, NewConfigurationError("replay of multipart event requires an attachment service")
		}
		rebuilt, contentType, err := c.attachments.RecreateForReplay(pkg.FormFields, pkg.Attachments)
		if err != nil {
			return nil, err
		}
		body = rebuilt
		headers["Content-Type"] = contentType
	} else if pkg.RequestBody != nil {
		switch v := pkg.RequestBody.(type) {
		case string:
			body = []byte(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode replay body: %w", err)
			}
			body = data
		}
	}

	return &Request{
		Method:  pkg.Method,
		URL:     pkg.URL,
		Headers: headers,
		Body:    body,
	}, nil
}

// report delivers a replay result to the collector. Reporting is best
// effort; a failure here never blocks the replay outcome.
func (c *Coordinator) report(ctx context.Context, result *ReplayResult) {
	if err := c.collector.ReportReplayResult(ctx, result); err != nil {
		c.logger.Warn("failed to report replay result", "replay_id", result.ReplayID, "error", err)
	}
}
