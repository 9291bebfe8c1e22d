// Package attachment extracts binary parts from outgoing multipart
// request bodies, enforces count and size limits, encrypts accepted
// parts to durable blobs, and rebuilds the outbound body so the request
// can still proceed after its single-use stream has been consumed.
//
// It also rebuilds multipart bodies from stored blobs for the replay
// workflow, and sweeps aged blobs on a cron schedule.
package attachment
