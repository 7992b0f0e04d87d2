package devicebuffer

import "time"

// Timing constants
const (
	// StatsReportInterval is the period of the self-rescheduling stats logger.
	StatsReportInterval = 10 * time.Second

	// minValidSessionTime is the minimum recording session length for the
	// recorded-only-zeros metric to be considered valid.
	minValidSessionTime = 10 * time.Second
)

// Data path constants
const (
	// levelProbeInterval is the number of data path calls between two
	// max-abs level measurements. With 10 ms buffers this samples the
	// level twice per second.
	levelProbeInterval = 50

	// bytesPerSample is the size of one 16-bit PCM sample.
	bytesPerSample = 2
)

// queueShutdownTimeout bounds how long Close waits for the aggregation
// queue to drain.
const queueShutdownTimeout = 5 * time.Second
