package transport

import (
	"log/slog"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
	"github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// LoopbackConfig holds construction options for a Loopback.
type LoopbackConfig struct {
	// Capacity is the ring buffer size in bytes. It bounds the loopback
	// latency: a full ring holds Capacity / (sampleRate * channels * 2)
	// seconds of audio.
	Capacity int
	Logger   *slog.Logger
	Metrics  *metrics.TransportMetrics
}

// Loopback routes captured audio back to the render side through a ring
// buffer. The capture callback writes, the render callback reads; neither
// ever blocks. When the render side falls behind, captured bytes are
// dropped; when the capture side falls behind, playout is padded with
// silence.
type Loopback struct {
	ring    *ringbuffer.RingBuffer
	logger  *slog.Logger
	metrics *metrics.TransportMetrics
}

var _ devicebuffer.Transport = (*Loopback)(nil)

// NewLoopback creates a loopback transport with the given ring capacity.
// Half the ring is primed with silence so the render side has headroom
// before the first captured buffer arrives.
func NewLoopback(config *LoopbackConfig) (*Loopback, error) {
	if config == nil || config.Capacity <= 0 {
		return nil, errors.Newf("loopback ring capacity must be positive").
			Component("transport").
			Category(errors.CategoryValidation).
			Build()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.ForService("transport")
		if logger == nil {
			logger = slog.Default()
		}
	}

	l := &Loopback{
		ring:    ringbuffer.New(config.Capacity),
		logger:  logger,
		metrics: config.Metrics,
	}
	prime := config.Capacity / 2
	prime -= prime % 2
	if _, err := l.ring.Write(make([]byte, prime)); err != nil {
		return nil, errors.New(err).
			Component("transport").
			Category(errors.CategoryAudio).
			Context("operation", "loopback_prime").
			Build()
	}
	logger.Info("loopback transport created",
		"capacity_bytes", config.Capacity,
		"primed_bytes", prime)
	return l, nil
}

// RecordedDataIsAvailable writes the captured bytes into the ring. A full
// ring drops the remainder instead of blocking the capture callback. The
// microphone level is passed through unchanged.
func (l *Loopback) RecordedDataIsAvailable(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int, totalDelayMs, clockDrift int, currentMicLevel uint32, keyPressed bool) (uint32, error) {
	n, err := l.ring.Write(audioSamples)
	if err != nil {
		if errors.Is(err, ringbuffer.ErrIsFull) {
			dropped := len(audioSamples) - n
			l.logger.Debug("loopback ring full, dropping captured audio",
				"dropped_bytes", dropped,
				"buffered_bytes", l.ring.Length())
			if l.metrics != nil {
				l.metrics.RecordLoopbackWrite("partial", n)
				l.metrics.RecordLoopbackDrop(dropped)
			}
			return currentMicLevel, nil
		}
		return currentMicLevel, errors.New(err).
			Component("transport").
			Category(errors.CategoryAudio).
			Context("operation", "loopback_write").
			Build()
	}
	if l.metrics != nil {
		l.metrics.RecordLoopbackWrite("success", n)
	}
	return currentMicLevel, nil
}

// NeedMorePlayData fills audioSamples from the ring, padding with silence
// on underrun. The full frame count is always reported since the buffer is
// always completely filled.
func (l *Loopback) NeedMorePlayData(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int) (int, int64, int64, error) {
	n, err := l.ring.Read(audioSamples)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return 0, 0, 0, errors.New(err).
			Component("transport").
			Category(errors.CategoryAudio).
			Context("operation", "loopback_read").
			Build()
	}
	if n < len(audioSamples) {
		clear(audioSamples[n:])
		l.logger.Debug("loopback ring underrun, padding with silence",
			"missing_bytes", len(audioSamples)-n)
		if l.metrics != nil {
			l.metrics.RecordLoopbackUnderrun()
		}
	}
	return frames, 0, 0, nil
}

// Buffered returns the number of bytes waiting in the ring.
func (l *Loopback) Buffered() int {
	return l.ring.Length()
}

// Capacity returns the ring capacity in bytes.
func (l *Loopback) Capacity() int {
	return l.ring.Capacity()
}

// Reset discards all buffered audio.
func (l *Loopback) Reset() {
	l.ring.Reset()
}
