package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// EventIDKey is the context key for captured event identifiers.
	EventIDKey contextKey = "event_id"

	// DeviceIDKey is the context key for the originating device.
	DeviceIDKey contextKey = "device_id"

	// ReplayIDKey is the context key for replay request identifiers.
	ReplayIDKey contextKey = "replay_id"

	// DeliveryIDKey is the context key for pending delivery row identifiers.
	DeliveryIDKey contextKey = "delivery_id"
)

// WithEventID adds a captured event ID to the context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// GetEventID retrieves the captured event ID from the context.
func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}

// WithDeviceID adds a device ID to the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, DeviceIDKey, deviceID)
}

// GetDeviceID retrieves the device ID from the context.
func GetDeviceID(ctx context.Context) string {
	if deviceID, ok := ctx.Value(DeviceIDKey).(string); ok {
		return deviceID
	}
	return ""
}

// WithReplayID adds a replay request ID to the context.
func WithReplayID(ctx context.Context, replayID string) context.Context {
	return context.WithValue(ctx, ReplayIDKey, replayID)
}

// GetReplayID retrieves the replay request ID from the context.
func GetReplayID(ctx context.Context) string {
	if replayID, ok := ctx.Value(ReplayIDKey).(string); ok {
		return replayID
	}
	return ""
}

// WithDeliveryID adds a pending delivery row ID to the context.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	return context.WithValue(ctx, DeliveryIDKey, deliveryID)
}

// GetDeliveryID retrieves the pending delivery row ID from the context.
func GetDeliveryID(ctx context.Context) string {
	if deliveryID, ok := ctx.Value(DeliveryIDKey).(string); ok {
		return deliveryID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, "event_id", eventID)
	}

	if deviceID := GetDeviceID(ctx); deviceID != "" {
		fields = append(fields, "device_id", deviceID)
	}

	if replayID := GetReplayID(ctx); replayID != "" {
		fields = append(fields, "replay_id", replayID)
	}

	if deliveryID := GetDeliveryID(ctx); deliveryID != "" {
		fields = append(fields, "delivery_id", deliveryID)
	}

	return fields
}
