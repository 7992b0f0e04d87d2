package devicebuffer

import (
	"math"
	"time"

	"github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// sessionStats accumulates per-session data path counters. The struct is
// owned by the aggregation queue goroutine; the data path roles update it
// exclusively through posted tasks.
type sessionStats struct {
	// recCallbacks is the total number of capture callbacks this session.
	recCallbacks uint64
	// recSamples is the total number of captured frames per channel.
	recSamples uint64
	// maxRecLevel is the largest capture max-abs probe since the last report.
	maxRecLevel int16

	// playCallbacks is the total number of render callbacks this session.
	playCallbacks uint64
	// playSamples is the total number of rendered frames per channel.
	playSamples uint64
	// maxPlayLevel is the largest render max-abs probe since the last report.
	maxPlayLevel int16
}

// resetRecord clears the capture side counters.
func (s *sessionStats) resetRecord() {
	s.recCallbacks = 0
	s.recSamples = 0
	s.maxRecLevel = 0
}

// resetPlayout clears the render side counters.
func (s *sessionStats) resetPlayout() {
	s.playCallbacks = 0
	s.playSamples = 0
	s.maxPlayLevel = 0
}

// logState drives the periodic logger state machine.
type logState int

const (
	// logStart arms the periodic logger and resets its schedule.
	logStart logState = iota
	// logStop disarms the logger; pending ticks terminate on arrival.
	logStop
	// logActive is a self-posted periodic tick.
	logActive
)

// updateRecStats posts a capture stats update to the aggregation queue.
// maxAbs is zero on the calls that skip the level probe, which is harmless
// because the queue tracks a running maximum.
func (b *Buffer) updateRecStats(maxAbs int16, frames int) {
	b.queue.Post(func() {
		b.stats.recCallbacks++
		b.stats.recSamples += uint64(frames)
		if maxAbs > b.stats.maxRecLevel {
			b.stats.maxRecLevel = maxAbs
		}
	})
}

// updatePlayStats posts a render stats update to the aggregation queue.
func (b *Buffer) updatePlayStats(maxAbs int16, frames int) {
	b.queue.Post(func() {
		b.stats.playCallbacks++
		b.stats.playSamples += uint64(frames)
		if maxAbs > b.stats.maxPlayLevel {
			b.stats.maxPlayLevel = maxAbs
		}
	})
}

// resetRecordStats clears both the live and baseline capture counters.
// Runs on the aggregation queue.
func (b *Buffer) resetRecordStats() {
	b.stats.resetRecord()
	b.lastStats.resetRecord()
}

// resetPlayoutStats clears both the live and baseline render counters.
// Runs on the aggregation queue.
func (b *Buffer) resetPlayoutStats() {
	b.stats.resetPlayout()
	b.lastStats.resetPlayout()
}

// startPeriodicLogging arms the periodic stats logger.
func (b *Buffer) startPeriodicLogging() {
	b.queue.Post(func() { b.logStats(logStart) })
}

// stopPeriodicLogging disarms the periodic stats logger. The post carries
// the stop through the queue so it serializes behind in-flight updates.
func (b *Buffer) stopPeriodicLogging() {
	b.queue.Post(func() { b.logStats(logStop) })
}

// logStats is the periodic logger state machine. It always runs on the
// aggregation queue. While armed, every tick snapshots and re-baselines the
// session counters; the first tick after arming only takes the baseline.
func (b *Buffer) logStats(state logState) {
	now := b.now()
	switch state {
	case logStart:
		// Reset the schedule at arming. Nothing is logged in this state;
		// the chain begins with the delayed task posted below.
		b.numStatReports = 0
		b.lastTimerTick = now
		b.nextTickTime = now.Add(StatsReportInterval)
		b.statsLogging = true
		b.scheduleStatsTick()
		return
	case logStop:
		// Disarm without rescheduling. Stop always wins.
		b.statsLogging = false
		return
	case logActive:
		// Continue below unless logging was disabled while this tick was
		// pending.
	}
	if !b.statsLogging {
		return
	}

	timeSinceLast := now.Sub(b.lastTimerTick)
	b.lastTimerTick = now

	snapshot := b.stats
	b.stats.maxRecLevel = 0
	b.stats.maxPlayLevel = 0

	// The first tick reports nothing: it has no baseline to diff against.
	// Counters are still re-baselined below so the next tick sees clean
	// deltas.
	b.numStatReports++
	if b.numStatReports > 1 && timeSinceLast > 0 {
		b.reportStats(snapshot, timeSinceLast)
	}
	b.lastStats = snapshot

	// The next wake is anchored to the previous scheduled time, not this
	// tick's entry time. Ticks stay on a fixed interval grid regardless of
	// queue jitter.
	b.nextTickTime = b.nextTickTime.Add(StatsReportInterval)
	b.scheduleStatsTick()
}

// scheduleStatsTick posts the next periodic tick for the scheduled wake
// time. The remaining wait must be positive; a tick overrunning its own
// reporting interval is a scheduling bug.
func (b *Buffer) scheduleStatsTick() {
	timeToWait := b.nextTickTime.Sub(b.now())
	if timeToWait <= 0 {
		if debugAssertions.Load() {
			panic("devicebuffer: stats tick overran its reporting interval")
		}
		timeToWait = time.Millisecond
	}
	b.queue.PostDelayed(func() { b.logStats(logActive) }, timeToWait)
}

// reportStats emits one diagnostic line per direction covering the closed
// interval, with rates derived from the counter deltas. Runs on the
// aggregation queue before the baseline is advanced.
func (b *Buffer) reportStats(snapshot sessionStats, interval time.Duration) {
	intervalMs := interval.Milliseconds()

	recRate := int(b.recSampleRate.Load())
	diffSamples := snapshot.recSamples - b.lastStats.recSamples
	rate := float64(diffSamples) / (float64(intervalMs) / 1000.0)
	if recRate > 0 && rate > 0 {
		rateDiffPercent := int(0.5 + (100.0*math.Abs(rate-float64(recRate)))/float64(recRate))
		b.logger.Info("[REC] periodic stats",
			"interval_ms", intervalMs,
			"sample_rate_khz", recRate/1000,
			"callbacks", snapshot.recCallbacks-b.lastStats.recCallbacks,
			"samples", diffSamples,
			"rate", int(rate),
			"rate_diff_percent", rateDiffPercent,
			"level", snapshot.maxRecLevel,
		)
		if b.metrics != nil {
			b.metrics.RecordStatsReport(metrics.SideRecord)
			b.metrics.UpdateAudioLevel(metrics.SideRecord, int(snapshot.maxRecLevel))
		}
	}

	playRate := int(b.playSampleRate.Load())
	diffSamples = snapshot.playSamples - b.lastStats.playSamples
	rate = float64(diffSamples) / (float64(intervalMs) / 1000.0)
	if playRate > 0 && rate > 0 {
		rateDiffPercent := int(0.5 + (100.0*math.Abs(rate-float64(playRate)))/float64(playRate))
		b.logger.Info("[PLAY] periodic stats",
			"interval_ms", intervalMs,
			"sample_rate_khz", playRate/1000,
			"callbacks", snapshot.playCallbacks-b.lastStats.playCallbacks,
			"samples", diffSamples,
			"rate", int(rate),
			"rate_diff_percent", rateDiffPercent,
			"level", snapshot.maxPlayLevel,
		)
		if b.metrics != nil {
			b.metrics.RecordStatsReport(metrics.SidePlay)
			b.metrics.UpdateAudioLevel(metrics.SidePlay, int(snapshot.maxPlayLevel))
		}
	}
}
