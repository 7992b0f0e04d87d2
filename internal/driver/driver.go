// Package driver binds the device buffer to real audio hardware through
// miniaudio. Each adapter owns one backend context and at most one capture
// and one playback device; the device callbacks feed the buffer's capture
// and render data paths.
package driver

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
)

// restartDelay is how long to wait before restarting a device that stopped
// on its own, to avoid rapid restart loops.
const restartDelay = 100 * time.Millisecond

// Adapter connects a devicebuffer.Buffer to the platform audio backend.
type Adapter struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	buffer *devicebuffer.Buffer
	logger *slog.Logger

	capture       *malgo.Device
	captureStream string
	playout       *malgo.Device
	playoutStream string

	captureStopping atomic.Bool
	playoutStopping atomic.Bool
}

// NewAdapter initializes the platform backend. The adapter does not open
// any device until StartCapture or StartPlayout is called.
func NewAdapter(buffer *devicebuffer.Buffer, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = logging.ForService("driver")
		if logger == nil {
			logger = slog.Default()
		}
	}
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	return &Adapter{ctx: ctx, buffer: buffer, logger: logger}, nil
}

// StartCapture opens the configured capture device and begins feeding the
// buffer's capture path from its data callback.
func (a *Adapter) StartCapture(settings *conf.DeviceSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != nil {
		return errors.Newf("capture already started").
			Component("driver").
			Category(errors.CategoryState).
			Build()
	}
	if err := a.buffer.SetRecordingSampleRate(settings.SampleRate); err != nil {
		return err
	}
	if err := a.buffer.SetRecordingChannels(settings.Channels); err != nil {
		return err
	}

	infos, err := a.ctx.Devices(malgo.Capture)
	if err != nil {
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	info, err := selectDevice(infos, settings.Device)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(settings.Channels)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(settings.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	streamID := uuid.New().String()
	a.captureStopping.Store(false)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, frameCount uint32) {
			a.buffer.SetRecordedData(pSamples, int(frameCount))
			a.buffer.DeliverRecordedData()
		},
		Stop: func() {
			if a.captureStopping.Load() {
				return
			}
			a.logger.Warn("capture device stopped unexpectedly", "stream_id", streamID)
			go a.restartCapture(streamID)
		},
	}

	device, err := malgo.InitDevice(a.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("device_name", info.Name()).
			Context("operation", "init_device").
			Build()
	}

	// The buffer must be recording before the first data callback fires.
	a.buffer.StartRecording()
	if err := device.Start(); err != nil {
		a.buffer.StopRecording()
		device.Uninit()
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("device_name", info.Name()).
			Context("operation", "start_device").
			Build()
	}

	a.capture = device
	a.captureStream = streamID
	a.logger.Info("capture started",
		"device", info.Name(),
		"sample_rate", settings.SampleRate,
		"channels", settings.Channels,
		"stream_id", streamID)
	return nil
}

// StopCapture stops and releases the capture device.
func (a *Adapter) StopCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCaptureLocked()
}

func (a *Adapter) stopCaptureLocked() error {
	if a.capture == nil {
		return errors.Newf("capture is not started").
			Component("driver").
			Category(errors.CategoryState).
			Build()
	}
	a.captureStopping.Store(true)
	_ = a.capture.Stop()
	a.capture.Uninit()
	a.capture = nil
	a.buffer.StopRecording()
	a.logger.Info("capture stopped", "stream_id", a.captureStream)
	a.captureStream = ""
	return nil
}

func (a *Adapter) restartCapture(streamID string) {
	time.Sleep(restartDelay)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture == nil || a.captureStopping.Load() {
		return
	}
	if err := a.capture.Start(); err != nil {
		a.logger.Error("capture device restart failed", "stream_id", streamID, "error", err)
		return
	}
	a.logger.Info("capture device restarted", "stream_id", streamID)
}

// StartPlayout opens the configured playback device and begins serving its
// data callback from the buffer's render path.
func (a *Adapter) StartPlayout(settings *conf.DeviceSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playout != nil {
		return errors.Newf("playout already started").
			Component("driver").
			Category(errors.CategoryState).
			Build()
	}
	if err := a.buffer.SetPlayoutSampleRate(settings.SampleRate); err != nil {
		return err
	}
	if err := a.buffer.SetPlayoutChannels(settings.Channels); err != nil {
		return err
	}

	infos, err := a.ctx.Devices(malgo.Playback)
	if err != nil {
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	info, err := selectDevice(infos, settings.Device)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(settings.Channels)
	deviceConfig.Playback.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(settings.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	streamID := uuid.New().String()
	a.playoutStopping.Store(false)
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSamples, _ []byte, frameCount uint32) {
			n := a.buffer.RequestPlayoutData(int(frameCount))
			if n == 0 {
				clear(pOutputSamples)
				return
			}
			a.buffer.GetPlayoutData(pOutputSamples)
		},
		Stop: func() {
			if a.playoutStopping.Load() {
				return
			}
			a.logger.Warn("playback device stopped unexpectedly", "stream_id", streamID)
			go a.restartPlayout(streamID)
		},
	}

	device, err := malgo.InitDevice(a.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("device_name", info.Name()).
			Context("operation", "init_device").
			Build()
	}

	// The buffer must be playing before the first data callback fires.
	a.buffer.StartPlayout()
	if err := device.Start(); err != nil {
		a.buffer.StopPlayout()
		device.Uninit()
		return errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("device_name", info.Name()).
			Context("operation", "start_device").
			Build()
	}

	a.playout = device
	a.playoutStream = streamID
	a.logger.Info("playout started",
		"device", info.Name(),
		"sample_rate", settings.SampleRate,
		"channels", settings.Channels,
		"stream_id", streamID)
	return nil
}

// StopPlayout stops and releases the playback device.
func (a *Adapter) StopPlayout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopPlayoutLocked()
}

func (a *Adapter) stopPlayoutLocked() error {
	if a.playout == nil {
		return errors.Newf("playout is not started").
			Component("driver").
			Category(errors.CategoryState).
			Build()
	}
	a.playoutStopping.Store(true)
	_ = a.playout.Stop()
	a.playout.Uninit()
	a.playout = nil
	a.buffer.StopPlayout()
	a.logger.Info("playout stopped", "stream_id", a.playoutStream)
	a.playoutStream = ""
	return nil
}

func (a *Adapter) restartPlayout(streamID string) {
	time.Sleep(restartDelay)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playout == nil || a.playoutStopping.Load() {
		return
	}
	if err := a.playout.Start(); err != nil {
		a.logger.Error("playback device restart failed", "stream_id", streamID, "error", err)
		return
	}
	a.logger.Info("playback device restarted", "stream_id", streamID)
}

// CaptureActive reports whether a capture device is open.
func (a *Adapter) CaptureActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture != nil
}

// PlayoutActive reports whether a playback device is open.
func (a *Adapter) PlayoutActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playout != nil
}

// Close stops any open devices and releases the backend context.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != nil {
		_ = a.stopCaptureLocked()
	}
	if a.playout != nil {
		_ = a.stopPlayoutLocked()
	}
	if a.ctx != nil {
		err := a.ctx.Uninit()
		a.ctx.Free()
		a.ctx = nil
		if err != nil {
			return errors.New(err).
				Component("driver").
				Category(errors.CategoryDevice).
				Context("operation", "uninit_context").
				Build()
		}
	}
	return nil
}
