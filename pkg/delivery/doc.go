// Package delivery transmits captured events to the remote collector
// and keeps them alive across failures.
//
// The Collector type speaks the JSON-over-HTTP collector protocol. The
// Coordinator sits above it: it submits statistical and encrypted
// packages, uploads attachment blobs, converts transport failures into
// durable pending rows, and drains the retry queue with exponential
// backoff under a single-flight scheduler. Server-issued retry
// directives override local backoff per row.
//
// The coordinator also executes server-requested replays from the local
// unencrypted store, reporting each outcome back to the collector and
// firing at most one registered continuation per event.
package delivery
