// Package pending provides the durable retry queue. A PendingDelivery
// row is created when a transmission fails and removed once every
// package kind it owes has been accepted by the collector, or when its
// attempt count reaches the configured cap.
package pending

import (
	"context"
	"time"
)

// Delivery is one durable retry record.
type Delivery struct {
	// ID uniquely identifies the row.
	ID string

	// EventID is the captured event this delivery belongs to.
	EventID string

	// CreatedAt orders rows within a scheduler pass.
	CreatedAt time.Time

	// AttemptCount is the number of failed attempts so far. It is
	// monotonic until the row is removed or the cap is reached.
	AttemptCount int

	// RetryID is the server-issued correlation id, set when a remote
	// retry directive overrides natural backoff. Empty otherwise.
	RetryID string

	// NextRetryAt is when the row becomes due.
	NextRetryAt time.Time

	// Payload is the serialized delivery unit, including the set of
	// package kinds still owed. The store treats it as opaque.
	Payload []byte
}

// Store is the durable pending-delivery queue.
//
// Implementations must be safe for use from capture calls and the retry
// scheduler concurrently; row outcomes within a pass are independent but
// all operations share one serialized connection.
type Store interface {
	// Enqueue inserts a new delivery row.
	Enqueue(ctx context.Context, d *Delivery) error

	// Due returns all rows with NextRetryAt <= now, in creation order.
	Due(ctx context.Context, now time.Time) ([]*Delivery, error)

	// Update persists attempt count, retry id, next retry time, and
	// payload for an existing row.
	Update(ctx context.Context, d *Delivery) error

	// Delete removes a row. Deleting an absent row is not an error.
	Delete(ctx context.Context, id string) error

	// GetByRetryID returns the row stamped with a server retry id,
	// or nil if none exists.
	GetByRetryID(ctx context.Context, retryID string) (*Delivery, error)

	// Count returns the number of rows in the queue.
	Count(ctx context.Context) (int, error)

	// All returns every row in creation order, due or not.
	All(ctx context.Context) ([]*Delivery, error)

	// Close releases the underlying resources.
	Close() error
}
