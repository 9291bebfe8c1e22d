package delivery

import (
	"encoding/json"
	"fmt"

	"mercator-hq/callisto/pkg/event"
)

// Package kinds a pending row can owe.
const (
	// KindError is the combined statistical+encrypted submission for a
	// captured failure.
	KindError = "error"

	// KindStatistical is a stats-only submission for a sampled success.
	KindStatistical = "statistical"

	// KindAttachment is the metadata+data upload of one attachment.
	KindAttachment = "attachment"
)

// deliveryPayload is the serialized body of one pending row. The queue
// treats it as opaque bytes; only the coordinator reads it.
//
// A row owes exactly one kind. Attachments are queued under their own
// rows so a failed blob upload never re-sends the main event.
type deliveryPayload struct {
	Kind string `json:"kind"`

	Stats      *event.StatisticalPackage `json:"stats,omitempty"`
	Encrypted  *event.EncryptedPackage   `json:"encrypted,omitempty"`
	Attachment *event.FileAttachment     `json:"attachment,omitempty"`

	// MaxAttempts, when positive, is a server-issued override of the
	// local attempt cap for this row.
	MaxAttempts int `json:"maxAttempts,omitempty"`
}

// encodePayload serializes a payload for storage in a pending row.
func encodePayload(p *deliveryPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode delivery payload: %w", err)
	}
	return data, nil
}

// decodePayload restores a payload from a pending row.
func decodePayload(data []byte) (*deliveryPayload, error) {
	var p deliveryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode delivery payload: %w", err)
	}
	if p.Kind == "" {
		return nil, fmt.Errorf("decode delivery payload: missing kind")
	}
	return &p, nil
}
