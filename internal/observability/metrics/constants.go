// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Side label values for metrics split by stream direction.
const (
	// SideRecord represents the capture (recording) side.
	SideRecord = "record"
	// SidePlay represents the render (playout) side.
	SidePlay = "play"
)

// Result label values for the recorded-only-zeros metric.
const (
	// ResultSilence marks a recording session that never saw a nonzero sample.
	ResultSilence = "silence"
	// ResultAudio marks a recording session with at least one nonzero sample.
	ResultAudio = "audio"
)

// ShutdownTimeout is the maximum time allowed for the metrics endpoint
// to shut down gracefully.
const ShutdownTimeout = 5 * time.Second
