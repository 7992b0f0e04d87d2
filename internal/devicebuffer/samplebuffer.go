package devicebuffer

// sampleBuffer is a single-owner byte buffer holding interleaved 16-bit PCM.
// It is reused between data path calls and only reallocates when a resize
// exceeds the current capacity, which keeps the steady state allocation free.
// Not safe for concurrent use; each instance belongs to exactly one role.
type sampleBuffer struct {
	data []byte
}

// resize sets the buffer length to n bytes and reports whether the length
// changed. Content is preserved up to the shorter of the old and new length;
// bytes exposed by growing within capacity keep their previous values.
func (sb *sampleBuffer) resize(n int) bool {
	if len(sb.data) == n {
		return false
	}
	if cap(sb.data) >= n {
		sb.data = sb.data[:n]
	} else {
		grown := make([]byte, n)
		copy(grown, sb.data)
		sb.data = grown
	}
	return true
}

// setData replaces the buffer content with a copy of src and reports whether
// the buffer length changed.
func (sb *sampleBuffer) setData(src []byte) bool {
	resized := sb.resize(len(src))
	copy(sb.data, src)
	return resized
}

// mute zero-fills the buffer at its current length.
func (sb *sampleBuffer) mute() {
	clear(sb.data)
}

// bytes returns the buffer content. The slice aliases internal storage and
// is only valid until the next resize.
func (sb *sampleBuffer) bytes() []byte {
	return sb.data
}

// size returns the current length in bytes.
func (sb *sampleBuffer) size() int {
	return len(sb.data)
}
