package devicebuffer

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// fakeClock provides a manually advanced time source for the buffer's
// injected clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingHandler captures slog records so tests can assert on messages
// and attributes.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(message string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Message == message {
			n++
		}
	}
	return n
}

// attrsOf returns the attributes of the n-th record carrying the given
// message, or nil if there is no such record.
func (h *recordingHandler) attrsOf(message string, n int) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := 0
	for _, r := range h.records {
		if r.Message != message {
			continue
		}
		if seen == n {
			attrs := make(map[string]any)
			r.Attrs(func(a slog.Attr) bool {
				attrs[a.Key] = a.Value.Any()
				return true
			})
			return attrs
		}
		seen++
	}
	return nil
}

// recCapture is a snapshot of the arguments of one RecordedDataIsAvailable
// call.
type recCapture struct {
	data          []byte
	frames        int
	bytesPerFrame int
	channels      int
	sampleRate    int
	delayMs       int
	drift         int
	micLevel      uint32
	typing        bool
}

// fakeTransport implements Transport with scriptable results.
type fakeTransport struct {
	mu           sync.Mutex
	recCalls     int
	rec          recCapture
	suggestLevel uint32
	recErr       error

	playCalls  int
	playFrames int
	fill       byte
	playErr    error
}

func (f *fakeTransport) RecordedDataIsAvailable(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int, totalDelayMs, clockDrift int, currentMicLevel uint32, keyPressed bool) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recCalls++
	f.rec = recCapture{
		data:          append([]byte(nil), audioSamples...),
		frames:        frames,
		bytesPerFrame: bytesPerFrame,
		channels:      channels,
		sampleRate:    sampleRate,
		delayMs:       totalDelayMs,
		drift:         clockDrift,
		micLevel:      currentMicLevel,
		typing:        keyPressed,
	}
	if f.recErr != nil {
		return 0, f.recErr
	}
	return f.suggestLevel, nil
}

func (f *fakeTransport) NeedMorePlayData(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int) (int, int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	f.playFrames = frames
	for i := range audioSamples {
		audioSamples[i] = f.fill
	}
	if f.playErr != nil {
		return 0, 0, 0, f.playErr
	}
	return frames, 0, 0, nil
}

func (f *fakeTransport) recCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recCalls
}

func (f *fakeTransport) lastCapture() recCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec
}

func (f *fakeTransport) lastPlayRequest() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playFrames
}

func (f *fakeTransport) setPlayErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr = err
}

// pcm16 builds a little-endian 16-bit PCM buffer of the given sample count,
// every sample set to value.
func pcm16(value int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(value))
	}
	return buf
}

func newTestBuffer(t *testing.T) (*Buffer, *fakeClock, *recordingHandler) {
	t.Helper()
	clock := newFakeClock()
	logs := &recordingHandler{}
	b := New(&Config{Logger: slog.New(logs)})
	b.now = clock.Now
	t.Cleanup(func() {
		if b.Recording() {
			b.StopRecording()
		}
		if b.Playing() {
			b.StopPlayout()
		}
		require.NoError(t, b.Close())
	})
	return b, clock, logs
}

func newTestMetrics(t *testing.T) (*metrics.DeviceBufferMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := metrics.NewDeviceBufferMetrics(registry)
	require.NoError(t, err)
	return m, registry
}

func TestStartStopIdempotent(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	b.StartRecording()
	assert.True(t, b.Recording())

	b.StopRecording()
	b.StopRecording()
	assert.False(t, b.Recording())
	assert.Equal(t, 1, logs.count("total recording time"))

	b.StartPlayout()
	b.StartPlayout()
	assert.True(t, b.Playing())
	b.StopPlayout()
	b.StopPlayout()
	assert.False(t, b.Playing())
	assert.Equal(t, 1, logs.count("total playout time"))
}

func TestRegisterTransportWhileMediaActive(t *testing.T) {
	b, _, _ := newTestBuffer(t)
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))
	first := &fakeTransport{}
	require.NoError(t, b.RegisterTransport(first))

	b.StartRecording()
	err := b.RegisterTransport(&fakeTransport{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	// The registered transport stays in place after the failed attempt.
	b.SetRecordedData(pcm16(0, 480), 480)
	b.DeliverRecordedData()
	assert.Equal(t, 1, first.recCallCount())

	b.StopRecording()
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.RegisterTransport(nil))
}

func TestCaptureDeliveryPassesSideInfo(t *testing.T) {
	b, _, _ := newTestBuffer(t)
	transport := &fakeTransport{suggestLevel: 111}
	require.NoError(t, b.RegisterTransport(transport))
	require.NoError(t, b.SetRecordingSampleRate(16000))
	require.NoError(t, b.SetRecordingChannels(2))

	b.StartRecording()
	b.SetCurrentMicLevel(33)
	b.SetTypingStatus(true)
	b.SetDelayEstimates(70, 20, 5)

	data := pcm16(250, 2*160)
	b.SetRecordedData(data, 160)
	b.DeliverRecordedData()

	capture := transport.lastCapture()
	assert.Equal(t, data, capture.data)
	assert.Equal(t, 160, capture.frames)
	assert.Equal(t, 4, capture.bytesPerFrame)
	assert.Equal(t, 2, capture.channels)
	assert.Equal(t, 16000, capture.sampleRate)
	assert.Equal(t, 90, capture.delayMs, "render and capture delays are summed")
	assert.Equal(t, 5, capture.drift)
	assert.Equal(t, uint32(33), capture.micLevel)
	assert.True(t, capture.typing)

	assert.Equal(t, uint32(111), b.NewMicLevel(), "suggested level is cached")
}

func TestCaptureWithoutTransportLogsAndContinues(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	m, registry := newTestMetrics(t)
	b.SetMetrics(m)
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	b.SetRecordedData(pcm16(0, 480), 480)
	b.DeliverRecordedData()
	b.DeliverRecordedData()

	assert.Equal(t, 2, logs.count("invalid audio transport"))
	expected := `
# HELP devicebuffer_transport_missing_total Total number of data path calls made while no transport was registered
# TYPE devicebuffer_transport_missing_total counter
devicebuffer_transport_missing_total{direction="record"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "devicebuffer_transport_missing_total"))
}

func TestCaptureTransportErrorDoesNotAbort(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	transport := &fakeTransport{recErr: errors.NewStd("transport failure")}
	require.NoError(t, b.RegisterTransport(transport))
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	b.SetRecordedData(pcm16(0, 480), 480)
	b.DeliverRecordedData()

	assert.Equal(t, 1, logs.count("RecordedDataIsAvailable() failed"))
	assert.Zero(t, b.NewMicLevel(), "failed delivery must not cache a level")

	// Capture continues past the failure.
	b.SetRecordedData(pcm16(0, 480), 480)
	b.DeliverRecordedData()
	assert.Equal(t, 2, transport.recCallCount())
}

func TestSilenceTrackingProbesEveryFiftiethBuffer(t *testing.T) {
	b, clock, _ := newTestBuffer(t)
	m, registry := newTestMetrics(t)
	b.SetMetrics(m)
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	loud := pcm16(1000, 480)
	for range levelProbeInterval - 1 {
		b.SetRecordedData(loud, 480)
	}
	assert.True(t, b.onlySilence.Load(), "no probe has run yet")

	b.SetRecordedData(loud, 480)
	assert.False(t, b.onlySilence.Load(), "the 50th buffer is probed")

	// Silence after the flag cleared must not restore it.
	quiet := pcm16(0, 480)
	for range levelProbeInterval {
		b.SetRecordedData(quiet, 480)
	}
	assert.False(t, b.onlySilence.Load())

	clock.Advance(minValidSessionTime + time.Second)
	b.StopRecording()

	expected := `
# HELP devicebuffer_recorded_only_zeros_total Recording sessions longer than the validity threshold, split by whether any nonzero sample was seen
# TYPE devicebuffer_recorded_only_zeros_total counter
devicebuffer_recorded_only_zeros_total{result="audio"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "devicebuffer_recorded_only_zeros_total"))

	n, err := testutil.GatherAndCount(registry, "devicebuffer_session_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSilentSessionCountsAsSilence(t *testing.T) {
	b, clock, _ := newTestBuffer(t)
	m, registry := newTestMetrics(t)
	b.SetMetrics(m)
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	quiet := pcm16(0, 480)
	for range 2 * levelProbeInterval {
		b.SetRecordedData(quiet, 480)
	}
	clock.Advance(minValidSessionTime + time.Second)
	b.StopRecording()

	expected := `
# HELP devicebuffer_recorded_only_zeros_total Recording sessions longer than the validity threshold, split by whether any nonzero sample was seen
# TYPE devicebuffer_recorded_only_zeros_total counter
devicebuffer_recorded_only_zeros_total{result="silence"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "devicebuffer_recorded_only_zeros_total"))
}

func TestShortRecordingSessionSkipsSilenceMetric(t *testing.T) {
	b, clock, _ := newTestBuffer(t)
	m, registry := newTestMetrics(t)
	b.SetMetrics(m)
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	clock.Advance(2 * time.Second)
	b.StopRecording()

	n, err := testutil.GatherAndCount(registry, "devicebuffer_recorded_only_zeros_total")
	require.NoError(t, err)
	assert.Zero(t, n, "sessions below the validity threshold are not counted")
}

func TestRecordingBufferResizeLoggedPerChange(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	data := pcm16(0, 480)
	b.SetRecordedData(data, 480)
	b.SetRecordedData(data, 480)
	assert.Equal(t, 1, logs.count("size of recording buffer changed"))

	b.SetRecordedData(pcm16(0, 441), 441)
	assert.Equal(t, 2, logs.count("size of recording buffer changed"))
}

func TestRenderWithoutTransportReturnsZero(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	require.NoError(t, b.SetPlayoutSampleRate(48000))
	require.NoError(t, b.SetPlayoutChannels(2))

	b.StartPlayout()
	got := b.RequestPlayoutData(480)
	assert.Zero(t, got)
	assert.Equal(t, 1, logs.count("invalid audio transport"))

	// The request still sized the buffer, but no render stats were
	// recorded for the failed call.
	require.True(t, b.queue.Sync())
	assert.Zero(t, b.stats.playCallbacks)
	assert.Equal(t, 480*2*2, b.playBuffer.size())
}

func TestRenderPathFillsAndCounts(t *testing.T) {
	b, _, _ := newTestBuffer(t)
	transport := &fakeTransport{fill: 0x01}
	require.NoError(t, b.RegisterTransport(transport))
	require.NoError(t, b.SetPlayoutSampleRate(44100))
	require.NoError(t, b.SetPlayoutChannels(2))

	b.StartPlayout()
	got := b.RequestPlayoutData(441)
	assert.Equal(t, 441, got)

	dst := make([]byte, 441*2*2)
	frames := b.GetPlayoutData(dst)
	assert.Equal(t, 441, frames)
	assert.Equal(t, bytes.Repeat([]byte{0x01}, len(dst)), dst)

	require.True(t, b.queue.Sync())
	assert.Equal(t, uint64(1), b.stats.playCallbacks)
	assert.Equal(t, uint64(441), b.stats.playSamples)
}

func TestPlayoutBufferTracksRequestSize(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	transport := &fakeTransport{}
	require.NoError(t, b.RegisterTransport(transport))
	require.NoError(t, b.SetPlayoutSampleRate(48000))
	require.NoError(t, b.SetPlayoutChannels(1))

	b.StartPlayout()
	b.RequestPlayoutData(480)
	b.RequestPlayoutData(480)
	assert.Equal(t, 1, logs.count("size of playout buffer changed"))

	b.RequestPlayoutData(441)
	assert.Equal(t, 2, logs.count("size of playout buffer changed"))
	assert.Equal(t, 441, transport.lastPlayRequest())
	assert.Equal(t, 441*2, b.playBuffer.size())
}

func TestRenderTransportErrorMutes(t *testing.T) {
	b, _, logs := newTestBuffer(t)
	transport := &fakeTransport{fill: 0x7f}
	require.NoError(t, b.RegisterTransport(transport))
	require.NoError(t, b.SetPlayoutSampleRate(48000))
	require.NoError(t, b.SetPlayoutChannels(1))

	b.StartPlayout()
	require.Equal(t, 480, b.RequestPlayoutData(480))

	transport.setPlayErr(errors.NewStd("decoder gone"))
	got := b.RequestPlayoutData(480)
	assert.Zero(t, got)
	assert.Equal(t, 1, logs.count("NeedMorePlayData() failed"))

	// Stale audio from the previous callback must not be replayed.
	dst := make([]byte, 480*2)
	assert.Equal(t, 480, b.GetPlayoutData(dst))
	assert.Equal(t, make([]byte, 480*2), dst)
}

func TestGetPlayoutDataContract(t *testing.T) {
	b, _, _ := newTestBuffer(t)
	require.NoError(t, b.SetPlayoutSampleRate(48000))
	require.NoError(t, b.SetPlayoutChannels(1))

	assert.Panics(t, func() { b.GetPlayoutData(make([]byte, 960)) },
		"reading before any request is a programming error")

	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	b.StartPlayout()
	b.RequestPlayoutData(480)
	assert.Panics(t, func() { b.GetPlayoutData(make([]byte, 100)) },
		"destination smaller than the buffer is a programming error")
}

func TestPeriodicStatsReporting(t *testing.T) {
	b, clock, logs := newTestBuffer(t)
	m, registry := newTestMetrics(t)
	b.SetMetrics(m)
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.SetRecordingSampleRate(8000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	require.True(t, b.queue.Sync())
	assert.Zero(t, logs.count("[REC] periodic stats"), "arming reports nothing")

	// The first tick only takes the baseline: there is nothing to diff
	// against yet.
	b.queue.Post(func() { b.logStats(logActive) })
	require.True(t, b.queue.Sync())
	assert.Zero(t, logs.count("[REC] periodic stats"), "first tick reports nothing")

	// One second of 10 ms buffers at 8 kHz mono, amplitude 1000.
	loud := pcm16(1000, 80)
	for range 100 {
		b.SetRecordedData(loud, 80)
	}
	require.True(t, b.queue.Sync())

	clock.Advance(time.Second)
	b.queue.Post(func() { b.logStats(logActive) })
	require.True(t, b.queue.Sync())

	require.Equal(t, 1, logs.count("[REC] periodic stats"))
	attrs := logs.attrsOf("[REC] periodic stats", 0)
	assert.EqualValues(t, 1000, attrs["interval_ms"])
	assert.EqualValues(t, 8, attrs["sample_rate_khz"])
	assert.EqualValues(t, 100, attrs["callbacks"])
	assert.EqualValues(t, 8000, attrs["samples"])
	assert.EqualValues(t, 8000, attrs["rate"])
	assert.EqualValues(t, 0, attrs["rate_diff_percent"])
	assert.EqualValues(t, 1000, attrs["level"])

	// Second window at half the callback rate with silent data. Deltas
	// start from the rebaselined counters and the peak was reset on the
	// previous tick.
	quiet := pcm16(0, 80)
	for range 50 {
		b.SetRecordedData(quiet, 80)
	}
	require.True(t, b.queue.Sync())

	clock.Advance(time.Second)
	b.queue.Post(func() { b.logStats(logActive) })
	require.True(t, b.queue.Sync())

	require.Equal(t, 2, logs.count("[REC] periodic stats"))
	attrs = logs.attrsOf("[REC] periodic stats", 1)
	assert.EqualValues(t, 50, attrs["callbacks"])
	assert.EqualValues(t, 4000, attrs["samples"])
	assert.EqualValues(t, 4000, attrs["rate"])
	assert.EqualValues(t, 50, attrs["rate_diff_percent"])
	assert.EqualValues(t, 0, attrs["level"])

	// No playout ran, so only the record side reported.
	assert.Zero(t, logs.count("[PLAY] periodic stats"))
	expected := `
# HELP devicebuffer_stats_reports_total Total number of periodic stats reports logged
# TYPE devicebuffer_stats_reports_total counter
devicebuffer_stats_reports_total{side="record"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "devicebuffer_stats_reports_total"))
}

func TestSecondDirectionDoesNotRearmLogger(t *testing.T) {
	b, clock, _ := newTestBuffer(t)
	require.NoError(t, b.SetRecordingSampleRate(8000))
	require.NoError(t, b.SetRecordingChannels(1))
	require.NoError(t, b.SetPlayoutSampleRate(8000))
	require.NoError(t, b.SetPlayoutChannels(1))

	t0 := clock.Now()
	b.StartRecording()
	require.True(t, b.queue.Sync())

	clock.Advance(3 * time.Second)
	b.StartPlayout()
	require.True(t, b.queue.Sync())
	assert.True(t, b.lastTimerTick.Equal(t0), "second direction must not restart the timer")

	// Stopping one direction keeps the logger armed for the other.
	b.StopPlayout()
	require.True(t, b.queue.Sync())
	assert.True(t, b.statsLogging)

	b.StopRecording()
	require.True(t, b.queue.Sync())
	assert.False(t, b.statsLogging)
}

func TestStopTerminatesPendingStatsTick(t *testing.T) {
	b, clock, logs := newTestBuffer(t)
	require.NoError(t, b.RegisterTransport(&fakeTransport{}))
	require.NoError(t, b.SetRecordingSampleRate(8000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	loud := pcm16(300, 80)
	for range 100 {
		b.SetRecordedData(loud, 80)
	}
	clock.Advance(11 * time.Second)
	b.StopRecording()
	require.True(t, b.queue.Sync())

	// A tick that was already pending when logging stopped must do
	// nothing, even though a full interval has elapsed.
	b.queue.Post(func() { b.logStats(logActive) })
	require.True(t, b.queue.Sync())

	assert.Zero(t, logs.count("[REC] periodic stats"))
	assert.False(t, b.statsLogging)
}

func TestChannelSelectionUnsupported(t *testing.T) {
	b, _, _ := newTestBuffer(t)

	err := b.SetRecordingChannel(ChannelLeft)
	require.Error(t, err)
	assert.True(t, errors.IsNotSupported(err))

	ch, err := b.RecordingChannel()
	require.Error(t, err)
	assert.Equal(t, ChannelBoth, ch)
}

func TestParameterValidation(t *testing.T) {
	b, _, _ := newTestBuffer(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"zero recording rate", func() error { return b.SetRecordingSampleRate(0) }},
		{"negative playout rate", func() error { return b.SetPlayoutSampleRate(-8000) }},
		{"zero recording channels", func() error { return b.SetRecordingChannels(0) }},
		{"negative playout channels", func() error { return b.SetPlayoutChannels(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}

	require.NoError(t, b.SetRecordingSampleRate(44100))
	assert.Equal(t, 44100, b.RecordingSampleRate())
	require.NoError(t, b.SetPlayoutChannels(2))
	assert.Equal(t, 2, b.PlayoutChannels())
}

func TestCloseWhileActivePanics(t *testing.T) {
	b := New(&Config{Logger: slog.New(&recordingHandler{})})
	b.now = newFakeClock().Now

	b.StartPlayout()
	assert.Panics(t, func() { _ = b.Close() })

	b.StopPlayout()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "closing twice is harmless")
}

func TestRoleAffinityAssertions(t *testing.T) {
	EnableDebugAssertions(true)
	defer EnableDebugAssertions(false)

	b, _, _ := newTestBuffer(t)
	require.NoError(t, b.SetRecordingSampleRate(48000))
	require.NoError(t, b.SetRecordingChannels(1))

	b.StartRecording()
	data := pcm16(0, 480)
	b.SetRecordedData(data, 480) // binds the capture role to this goroutine

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		b.SetRecordedData(data, 480)
	}()
	require.NotNil(t, <-panicked, "a second capture goroutine must be rejected")

	// Restarting detaches the role so a fresh capture goroutine may bind.
	b.StopRecording()
	b.StartRecording()
	go func() {
		defer func() { panicked <- recover() }()
		b.SetRecordedData(data, 480)
	}()
	require.Nil(t, <-panicked)
}

func TestCloseReleasesQueueGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(&Config{Logger: slog.New(&recordingHandler{})})
	b.now = newFakeClock().Now
	b.StartRecording()
	b.StopRecording()
	require.NoError(t, b.Close())
}
