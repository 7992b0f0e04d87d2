package devicebuffer

// Transport is the application-level audio pipeline a Buffer delivers
// captured audio to and pulls playout audio from. Implementations must not
// retain the audioSamples slice past the call.
type Transport interface {
	// RecordedDataIsAvailable hands one captured 16-bit PCM buffer to the
	// application. It returns a new microphone level suggestion (0 keeps the
	// current level) or an error. Called from the capture role.
	RecordedDataIsAvailable(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int,
		totalDelayMs, clockDrift int, currentMicLevel uint32, keyPressed bool) (newMicLevel uint32, err error)

	// NeedMorePlayData asks the application to produce up to frames frames of
	// 16-bit PCM into audioSamples. It returns the number of frames actually
	// produced plus elapsed and NTP timestamps for renderers that align
	// streams; both timestamps are opaque to the device buffer. Called from
	// the render role.
	NeedMorePlayData(audioSamples []byte, frames, bytesPerFrame, channels, sampleRate int) (framesOut int,
		elapsedTimeMs, ntpTimeMs int64, err error)
}

// Channel identifies a recording channel in the legacy per-channel
// selection API.
type Channel int

const (
	// ChannelBoth records both channels mixed, the only supported mode.
	ChannelBoth Channel = iota
	// ChannelLeft selects the left channel only. Unsupported.
	ChannelLeft
	// ChannelRight selects the right channel only. Unsupported.
	ChannelRight
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelBoth:
		return "both"
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return "unknown"
	}
}
