package devicebuffer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
	"github.com/tphakala/audiodev-go/internal/observability/metrics"
	"github.com/tphakala/audiodev-go/internal/taskqueue"
)

// Config holds construction options for a Buffer.
type Config struct {
	// Logger receives lifecycle, diagnostic and periodic stats output.
	// Defaults to the structured logger tagged for this service.
	Logger *slog.Logger
}

// Buffer owns the capture and render sample buffers of one audio device and
// mediates between the platform callbacks and the registered Transport. See
// the package documentation for the role model.
type Buffer struct {
	logger  *slog.Logger
	metrics *metrics.DeviceBufferMetrics
	queue   *taskqueue.Queue
	now     func() time.Time

	transport atomic.Pointer[Transport]

	recording atomic.Bool
	playing   atomic.Bool
	closed    atomic.Bool

	recSampleRate  atomic.Int32
	playSampleRate atomic.Int32
	recChannels    atomic.Int32
	playChannels   atomic.Int32

	// Capture role state.
	recBuffer    sampleBuffer
	recStatCount int
	newMicLevel  uint32
	typing       bool
	playDelayMs  int
	recDelayMs   int
	clockDrift   int

	// Render role state.
	playBuffer    sampleBuffer
	playStatCount int

	// Written by the capture role, reset by the control role on start,
	// read by the control role on stop.
	onlySilence atomic.Bool

	// The microphone level crosses roles: platform volume callbacks may
	// run on a dedicated thread.
	currentMicLevel atomic.Uint32

	// Control role state.
	recStartTime  time.Time
	playStartTime time.Time

	// Aggregation queue state. Only tasks touch these.
	stats          sessionStats
	lastStats      sessionStats
	statsLogging   bool
	numStatReports int
	lastTimerTick  time.Time
	nextTickTime   time.Time

	controlGuard roleGuard
	captureGuard roleGuard
	renderGuard  roleGuard
}

// New creates a Buffer with its own aggregation queue. The returned Buffer
// holds no configuration yet; the control role must set sample rates and
// channel counts before starting media.
func New(config *Config) *Buffer {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.ForService("devicebuffer")
		if logger == nil {
			logger = slog.Default()
		}
	}

	b := &Buffer{
		logger: logger,
		now:    time.Now,
		queue: taskqueue.New(&taskqueue.Config{
			Name:       "devicebuffer",
			BufferSize: 512,
			Logger:     logger,
		}),
		controlGuard: roleGuard{role: "control"},
		captureGuard: roleGuard{role: "capture"},
		renderGuard:  roleGuard{role: "render"},
	}
	b.logger.Debug("device buffer created")
	return b
}

// SetMetrics attaches Prometheus metrics. Must be called before media is
// started; nil leaves metrics disabled.
func (b *Buffer) SetMetrics(m *metrics.DeviceBufferMetrics) {
	b.metrics = m
}

// Close releases the aggregation queue. Both media directions must be
// stopped first; closing an active buffer is a programming error and
// panics. Safe to call more than once.
func (b *Buffer) Close() error {
	if b.playing.Load() || b.recording.Load() {
		panic("devicebuffer: Close called while media is active")
	}
	if b.closed.Swap(true) {
		return nil
	}
	b.logger.Debug("device buffer closing")
	return b.queue.Shutdown(queueShutdownTimeout)
}

// RegisterTransport attaches the application transport, or detaches it when
// t is nil. Fails without side effects while either media direction is
// active.
func (b *Buffer) RegisterTransport(t Transport) error {
	b.controlGuard.check()
	if b.playing.Load() || b.recording.Load() {
		b.logger.Error("failed to set audio transport since media was active")
		return errors.Newf("cannot register transport while media is active").
			Component("devicebuffer").
			Category(errors.CategoryConflict).
			Context("playing", b.playing.Load()).
			Context("recording", b.recording.Load()).
			Build()
	}
	if t == nil {
		b.transport.Store(nil)
		b.logger.Info("audio transport deregistered")
		return nil
	}
	b.transport.Store(&t)
	b.logger.Info("audio transport registered")
	return nil
}

// loadTransport returns the registered transport or nil.
func (b *Buffer) loadTransport() Transport {
	p := b.transport.Load()
	if p == nil {
		return nil
	}
	return *p
}

// StartPlayout marks the render direction active. Idempotent. Arms the
// periodic stats logger when it is the first active direction.
func (b *Buffer) StartPlayout() {
	b.controlGuard.check()
	if b.playing.Load() {
		return
	}
	b.logger.Debug("StartPlayout")
	b.queue.Post(b.resetPlayoutStats)
	if !b.recording.Load() {
		b.startPeriodicLogging()
	}
	b.playStartTime = b.now()
	b.renderGuard.detach()
	b.playing.Store(true)
}

// StartRecording marks the capture direction active. Idempotent. Resets the
// silence tracker and arms the periodic stats logger when it is the first
// active direction.
func (b *Buffer) StartRecording() {
	b.controlGuard.check()
	if b.recording.Load() {
		return
	}
	b.logger.Debug("StartRecording")
	b.queue.Post(b.resetRecordStats)
	if !b.playing.Load() {
		b.startPeriodicLogging()
	}
	b.onlySilence.Store(true)
	b.recStartTime = b.now()
	b.captureGuard.detach()
	b.recording.Store(true)
}

// StopPlayout marks the render direction inactive. Idempotent. Disarms the
// periodic stats logger when no direction remains active.
func (b *Buffer) StopPlayout() {
	b.controlGuard.check()
	if !b.playing.Load() {
		return
	}
	b.logger.Debug("StopPlayout")
	b.playing.Store(false)
	if !b.recording.Load() {
		b.stopPeriodicLogging()
	}
	duration := b.now().Sub(b.playStartTime)
	b.logger.Info("total playout time", "duration_ms", duration.Milliseconds())
	if b.metrics != nil {
		b.metrics.RecordSessionDuration(metrics.SidePlay, duration.Seconds())
	}
}

// StopRecording marks the capture direction inactive. Idempotent. Disarms
// the periodic stats logger when no direction remains active and reports
// the silence outcome for sessions long enough to be meaningful.
func (b *Buffer) StopRecording() {
	b.controlGuard.check()
	if !b.recording.Load() {
		return
	}
	b.logger.Debug("StopRecording")
	b.recording.Store(false)
	if !b.playing.Load() {
		b.stopPeriodicLogging()
	}
	duration := b.now().Sub(b.recStartTime)
	// Short sessions say nothing about whether the microphone works, so
	// the silence outcome is only counted past the validity threshold.
	if duration > minValidSessionTime {
		onlySilence := b.onlySilence.Load()
		b.logger.Info("recording session silence outcome", "only_silence", onlySilence)
		if b.metrics != nil {
			b.metrics.RecordSilenceSession(onlySilence)
		}
	}
	b.logger.Info("total recording time", "duration_ms", duration.Milliseconds())
	if b.metrics != nil {
		b.metrics.RecordSessionDuration(metrics.SideRecord, duration.Seconds())
	}
}

// Playing reports whether the render direction is active.
func (b *Buffer) Playing() bool {
	return b.playing.Load()
}

// Recording reports whether the capture direction is active.
func (b *Buffer) Recording() bool {
	return b.recording.Load()
}

// SetRecordingSampleRate sets the capture sample rate in Hz.
func (b *Buffer) SetRecordingSampleRate(rate int) error {
	b.logger.Info("SetRecordingSampleRate", "rate", rate)
	if rate <= 0 {
		return errors.Newf("invalid recording sample rate %d", rate).
			Component("devicebuffer").
			Category(errors.CategoryValidation).
			Build()
	}
	b.recSampleRate.Store(int32(rate))
	return nil
}

// SetPlayoutSampleRate sets the render sample rate in Hz.
func (b *Buffer) SetPlayoutSampleRate(rate int) error {
	b.logger.Info("SetPlayoutSampleRate", "rate", rate)
	if rate <= 0 {
		return errors.Newf("invalid playout sample rate %d", rate).
			Component("devicebuffer").
			Category(errors.CategoryValidation).
			Build()
	}
	b.playSampleRate.Store(int32(rate))
	return nil
}

// RecordingSampleRate returns the capture sample rate in Hz.
func (b *Buffer) RecordingSampleRate() int {
	return int(b.recSampleRate.Load())
}

// PlayoutSampleRate returns the render sample rate in Hz.
func (b *Buffer) PlayoutSampleRate() int {
	return int(b.playSampleRate.Load())
}

// SetRecordingChannels sets the capture channel count.
func (b *Buffer) SetRecordingChannels(channels int) error {
	b.logger.Info("SetRecordingChannels", "channels", channels)
	if channels < 1 {
		return errors.Newf("invalid recording channel count %d", channels).
			Component("devicebuffer").
			Category(errors.CategoryValidation).
			Build()
	}
	b.recChannels.Store(int32(channels))
	return nil
}

// SetPlayoutChannels sets the render channel count.
func (b *Buffer) SetPlayoutChannels(channels int) error {
	b.logger.Info("SetPlayoutChannels", "channels", channels)
	if channels < 1 {
		return errors.Newf("invalid playout channel count %d", channels).
			Component("devicebuffer").
			Category(errors.CategoryValidation).
			Build()
	}
	b.playChannels.Store(int32(channels))
	return nil
}

// RecordingChannels returns the capture channel count.
func (b *Buffer) RecordingChannels() int {
	return int(b.recChannels.Load())
}

// PlayoutChannels returns the render channel count.
func (b *Buffer) PlayoutChannels() int {
	return int(b.playChannels.Load())
}

// SetRecordingChannel is a legacy per-channel selection surface kept for
// API compatibility. It is not supported and always fails.
func (b *Buffer) SetRecordingChannel(channel Channel) error {
	b.logger.Warn("SetRecordingChannel() is not supported", "channel", channel.String())
	return errors.Newf("per-channel recording selection is not supported").
		Component("devicebuffer").
		Category(errors.CategoryNotSupported).
		Context("channel", channel.String()).
		Build()
}

// RecordingChannel mirrors SetRecordingChannel and always fails.
func (b *Buffer) RecordingChannel() (Channel, error) {
	b.logger.Warn("RecordingChannel() is not supported")
	return ChannelBoth, errors.Newf("per-channel recording selection is not supported").
		Component("devicebuffer").
		Category(errors.CategoryNotSupported).
		Build()
}

// SetCurrentMicLevel stores the current microphone volume. Unlike the other
// capture state this may be called from a platform volume-control thread.
func (b *Buffer) SetCurrentMicLevel(level uint32) {
	b.currentMicLevel.Store(level)
}

// NewMicLevel returns the last microphone level suggested by the transport.
func (b *Buffer) NewMicLevel() uint32 {
	b.captureGuard.check()
	return b.newMicLevel
}

// SetTypingStatus stores the keyboard typing flag delivered alongside the
// next captured buffer. Capture role.
func (b *Buffer) SetTypingStatus(keyPressed bool) {
	b.captureGuard.check()
	b.typing = keyPressed
}

// SetDelayEstimates stores the delay and drift estimates delivered
// alongside the next captured buffer. Capture role.
func (b *Buffer) SetDelayEstimates(playDelayMs, recDelayMs, clockDrift int) {
	b.captureGuard.check()
	b.playDelayMs = playDelayMs
	b.recDelayMs = recDelayMs
	b.clockDrift = clockDrift
}

// SetRecordedData copies one captured buffer of interleaved 16-bit PCM into
// the capture sample buffer. frames is the per-channel frame count; data
// must hold at least frames * channels * 2 bytes. Every 50th call probes
// the peak level, which also feeds the silence tracker. Capture role.
func (b *Buffer) SetRecordedData(data []byte, frames int) {
	b.captureGuard.check()
	channels := int(b.recChannels.Load())
	totalBytes := frames * channels * bytesPerSample

	oldSize := b.recBuffer.size()
	b.recBuffer.setData(data[:totalBytes])
	if oldSize != b.recBuffer.size() {
		// Rare event: the platform changed its buffer size.
		b.logger.Info("size of recording buffer changed", "bytes", b.recBuffer.size())
		if b.metrics != nil {
			b.metrics.RecordBufferResize(metrics.SideRecord)
			b.metrics.UpdateBufferSize(metrics.SideRecord, frames)
		}
	}

	var maxAbs int16
	b.recStatCount++
	if b.recStatCount >= levelProbeInterval {
		maxAbs = maxAbsSample(b.recBuffer.bytes())
		b.recStatCount = 0
		// A single nonzero peak proves the microphone path is alive.
		// Only a new session restores the flag.
		if b.onlySilence.Load() && maxAbs > 0 {
			b.onlySilence.Store(false)
		}
	}
	b.updateRecStats(maxAbs, frames)
}

// DeliverRecordedData hands the capture sample buffer to the registered
// transport together with the side information accumulated by the capture
// role setters. A missing transport or a transport error is logged and
// swallowed; capture always proceeds. Capture role.
func (b *Buffer) DeliverRecordedData() {
	b.captureGuard.check()
	t := b.loadTransport()
	if t == nil {
		b.logger.Warn("invalid audio transport")
		if b.metrics != nil {
			b.metrics.RecordTransportMissing(metrics.SideRecord)
		}
		return
	}

	channels := int(b.recChannels.Load())
	bytesPerFrame := channels * bytesPerSample
	frames := 0
	if bytesPerFrame > 0 {
		frames = b.recBuffer.size() / bytesPerFrame
	}
	totalDelayMs := b.playDelayMs + b.recDelayMs

	newMicLevel, err := t.RecordedDataIsAvailable(
		b.recBuffer.bytes(), frames, bytesPerFrame, channels,
		int(b.recSampleRate.Load()), totalDelayMs, b.clockDrift,
		b.currentMicLevel.Load(), b.typing)
	if err != nil {
		b.logger.Error("RecordedDataIsAvailable() failed", "error", err)
		if b.metrics != nil {
			b.metrics.RecordTransportError(metrics.SideRecord)
		}
		return
	}
	b.newMicLevel = newMicLevel
}

// RequestPlayoutData asks the registered transport to produce frames frames
// of interleaved 16-bit PCM into the render sample buffer and returns the
// frame count the transport reported. The buffer is resized to the request
// first, so a changed request size takes effect immediately. Without a
// transport the call returns 0 and the caller must emit silence. On a
// transport error the buffer is muted so stale audio is never replayed.
// Render role.
func (b *Buffer) RequestPlayoutData(frames int) int {
	b.renderGuard.check()
	channels := int(b.playChannels.Load())
	totalBytes := frames * channels * bytesPerSample
	if b.playBuffer.resize(totalBytes) {
		b.logger.Info("size of playout buffer changed", "bytes", totalBytes)
		if b.metrics != nil {
			b.metrics.RecordBufferResize(metrics.SidePlay)
			b.metrics.UpdateBufferSize(metrics.SidePlay, frames)
		}
	}

	t := b.loadTransport()
	if t == nil {
		b.logger.Warn("invalid audio transport")
		if b.metrics != nil {
			b.metrics.RecordTransportMissing(metrics.SidePlay)
		}
		return 0
	}

	bytesPerFrame := channels * bytesPerSample
	framesOut, _, _, err := t.NeedMorePlayData(
		b.playBuffer.bytes(), frames, bytesPerFrame, channels,
		int(b.playSampleRate.Load()))
	if err != nil {
		b.logger.Error("NeedMorePlayData() failed", "error", err)
		if b.metrics != nil {
			b.metrics.RecordTransportError(metrics.SidePlay)
		}
		b.playBuffer.mute()
	}

	var maxAbs int16
	b.playStatCount++
	if b.playStatCount >= levelProbeInterval {
		maxAbs = maxAbsSample(b.playBuffer.bytes())
		b.playStatCount = 0
	}
	b.updatePlayStats(maxAbs, framesOut)
	return framesOut
}

// GetPlayoutData copies the render sample buffer into dst and returns the
// frame count it holds. Calling this before RequestPlayoutData produced
// data is a programming error and panics. Render role.
func (b *Buffer) GetPlayoutData(dst []byte) int {
	b.renderGuard.check()
	size := b.playBuffer.size()
	if size == 0 {
		panic("devicebuffer: playout buffer is empty, request playout data first")
	}
	if len(dst) < size {
		panic(fmt.Sprintf("devicebuffer: playout destination too small: %d < %d", len(dst), size))
	}
	copy(dst, b.playBuffer.bytes())
	bytesPerFrame := int(b.playChannels.Load()) * bytesPerSample
	return size / bytesPerFrame
}
