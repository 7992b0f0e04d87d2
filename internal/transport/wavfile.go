package transport

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
	"github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// wavChunkSamples is the decode granularity. A chunk covers many render
// callbacks so the decoder is touched far less often than the device.
const wavChunkSamples = 8192

// WavSourceConfig holds construction options for a WavSource.
type WavSourceConfig struct {
	Path string
	// Loop rewinds to the start of the file when the end is reached.
	// Without it the source serves silence once exhausted.
	Loop    bool
	Logger  *slog.Logger
	Metrics *metrics.TransportMetrics
}

// WavSource is a render-only transport that serves 16-bit PCM from a WAV
// file. Captured audio handed to it is discarded.
type WavSource struct {
	mu         sync.Mutex
	file       *os.File
	decoder    *wav.Decoder
	buf        *audio.IntBuffer
	pending    []int
	pendingPos int
	exhausted  bool

	path       string
	loop       bool
	sampleRate int
	channels   int

	logger  *slog.Logger
	metrics *metrics.TransportMetrics
}

var _ devicebuffer.Transport = (*WavSource)(nil)

// NewWavSource opens and validates a WAV file. Only 16-bit PCM with one or
// two channels is accepted, matching the sample format of the device
// buffer.
func NewWavSource(config *WavSourceConfig) (*WavSource, error) {
	logger := config.Logger
	if logger == nil {
		logger = logging.ForService("transport")
		if logger == nil {
			logger = slog.Default()
		}
	}

	file, err := os.Open(config.Path)
	if err != nil {
		if config.Metrics != nil {
			config.Metrics.RecordWavSourceOpen("error")
		}
		return nil, errors.New(err).
			Component("transport").
			Category(errors.CategoryFileIO).
			Context("path", config.Path).
			Build()
	}

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = file.Close()
		if config.Metrics != nil {
			config.Metrics.RecordWavSourceOpen("error")
		}
		return nil, errors.Newf("not a valid WAV file").
			Component("transport").
			Category(errors.CategoryFileParsing).
			Context("path", config.Path).
			Build()
	}
	if decoder.BitDepth != 16 {
		_ = file.Close()
		if config.Metrics != nil {
			config.Metrics.RecordWavSourceOpen("error")
		}
		return nil, errors.Newf("unsupported bit depth: %d", decoder.BitDepth).
			Component("transport").
			Category(errors.CategoryFileParsing).
			Context("path", config.Path).
			Build()
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		_ = file.Close()
		if config.Metrics != nil {
			config.Metrics.RecordWavSourceOpen("error")
		}
		return nil, errors.Newf("unsupported number of channels: %d", decoder.NumChans).
			Component("transport").
			Category(errors.CategoryFileParsing).
			Context("path", config.Path).
			Build()
	}

	s := &WavSource{
		file:       file,
		decoder:    decoder,
		path:       config.Path,
		loop:       config.Loop,
		sampleRate: int(decoder.SampleRate),
		channels:   int(decoder.NumChans),
		logger:     logger,
		metrics:    config.Metrics,
		buf: &audio.IntBuffer{
			Data: make([]int, wavChunkSamples),
			Format: &audio.Format{
				SampleRate:  int(decoder.SampleRate),
				NumChannels: int(decoder.NumChans),
			},
		},
	}
	if s.metrics != nil {
		s.metrics.RecordWavSourceOpen("success")
	}
	logger.Info("wav source opened",
		"path", config.Path,
		"sample_rate", s.sampleRate,
		"channels", s.channels,
		"loop", config.Loop)
	return s, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *WavSource) SampleRate() int {
	return s.sampleRate
}

// Channels returns the file's channel count.
func (s *WavSource) Channels() int {
	return s.channels
}

// Exhausted reports whether the file has been fully served. A looping
// source never exhausts unless decoding fails.
func (s *WavSource) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted && s.pendingPos >= len(s.pending)
}

// Close releases the underlying file.
func (s *WavSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted = true
	s.pending = nil
	return s.file.Close()
}

// RecordedDataIsAvailable discards captured audio; the source is render
// only. The microphone level is passed through unchanged.
func (s *WavSource) RecordedDataIsAvailable(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int, totalDelayMs, clockDrift int, currentMicLevel uint32, keyPressed bool) (uint32, error) {
	return currentMicLevel, nil
}

// NeedMorePlayData fills audioSamples with decoded file content, padding
// with silence once the file is exhausted. Decode failures mark the source
// exhausted so they are logged once, not per callback.
func (s *WavSource) NeedMorePlayData(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int) (int, int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := frames * channels
	written := 0
	for written < total {
		if s.pendingPos >= len(s.pending) && !s.refill() {
			break
		}
		avail := len(s.pending) - s.pendingPos
		take := total - written
		if take > avail {
			take = avail
		}
		for i := range take {
			sample := s.pending[s.pendingPos+i]
			binary.LittleEndian.PutUint16(audioSamples[2*(written+i):], uint16(int16(sample)))
		}
		s.pendingPos += take
		written += take
	}

	if written > 0 && s.metrics != nil {
		s.metrics.RecordWavFramesServed(metrics.ResultAudio, written/channels)
	}
	if written < total {
		clear(audioSamples[2*written:])
		if s.metrics != nil {
			s.metrics.RecordWavFramesServed(metrics.ResultSilence, (total-written)/channels)
		}
	}
	return frames, 0, 0, nil
}

// refill decodes the next chunk into pending. Returns false when no more
// samples can be produced. Caller holds mu.
func (s *WavSource) refill() bool {
	if s.exhausted {
		return false
	}
	for {
		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil {
			s.logger.Error("wav decode failed", "path", s.path, "error", err)
			s.exhausted = true
			return false
		}
		if n == 0 {
			if !s.loop {
				s.logger.Info("wav source exhausted", "path", s.path)
				s.exhausted = true
				return false
			}
			if err := s.rewind(); err != nil {
				s.logger.Error("wav source rewind failed", "path", s.path, "error", err)
				s.exhausted = true
				return false
			}
			continue
		}
		// pending aliases the decode buffer; it is fully consumed before
		// the next refill.
		s.pending = s.buf.Data[:n]
		s.pendingPos = 0
		return true
	}
}

// rewind seeks back to the start of the file and rebuilds the decoder so a
// looping source can serve the file again. Caller holds mu.
func (s *WavSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return errors.New(err).
			Component("transport").
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}
	s.decoder = wav.NewDecoder(s.file)
	s.decoder.ReadInfo()
	if !s.decoder.IsValidFile() {
		return errors.Newf("file no longer parses as WAV after rewind").
			Component("transport").
			Category(errors.CategoryFileParsing).
			Context("path", s.path).
			Build()
	}
	return nil
}
