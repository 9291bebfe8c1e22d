// Callisto is a client-side SDK that turns failed outgoing requests
// into durable encrypted telemetry, with offline retry and device-side
// replay. This binary is the operator companion for an installation's
// on-device state.
//
// Usage:
//
//	# List rows waiting in the retry queue
//	callisto pending --config callisto.yaml
//
//	# Sweep aged attachment blobs and stale replay copies
//	callisto prune --config callisto.yaml
//
//	# Recover an encrypted package with the installation key
//	callisto decrypt --key-file /etc/callisto/key package.json
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
