package client

import (
	"context"

	"mercator-hq/callisto/pkg/delivery"
)

// CheckForReplay polls the collector for a pending replay request
// addressed to this device. It returns nil when nothing is pending.
func (c *Client) CheckForReplay(ctx context.Context) (*delivery.ReplayRequest, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.coordinator.CheckForReplay(ctx)
}

// ExecuteReplay re-issues the stored original request through the
// supplied transport, reports the outcome to the collector, and removes
// the local copy on success. Pass nil to use the client's own HTTP
// transport.
//
// Replay only runs when the cached policy allows it.
func (c *Client) ExecuteReplay(ctx context.Context, req *delivery.ReplayRequest, transport delivery.Transport) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.policies.ReplayEnabled() {
		c.logger.Info("Replay request ignored, policy disables replay",
			"replay_id", replayID(req),
		)
		return nil
	}
	if transport == nil {
		transport = delivery.NewHTTPTransport(c.config.Collector.Timeout)
	}
	return c.coordinator.ExecuteReplay(ctx, req, transport)
}

// OnReplaySuccess registers a single-shot continuation invoked with the
// replay response for the given event. The continuation fires at most
// once and is discarded afterwards; it must be re-registered for a
// later replay of the same event.
func (c *Client) OnReplaySuccess(eventID string, fn delivery.ReplayContinuation) {
	c.coordinator.RegisterContinuation(eventID, fn)
}

// RemoveReplayHandler discards a continuation that has not fired.
func (c *Client) RemoveReplayHandler(eventID string) {
	c.coordinator.RemoveContinuation(eventID)
}

func replayID(req *delivery.ReplayRequest) string {
	if req == nil {
		return ""
	}
	return req.ID
}
