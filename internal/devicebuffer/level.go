package devicebuffer

import "encoding/binary"

// maxAbsSample returns the largest absolute sample value in a buffer of
// interleaved little-endian signed 16-bit PCM. The result saturates at
// 32767 so that a buffer containing -32768 still fits in an int16.
func maxAbsSample(samples []byte) int16 {
	var maxAbs int32
	for i := 0; i+1 < len(samples); i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(samples[i : i+2])))
		if s < 0 {
			s = -s
		}
		if s > maxAbs {
			maxAbs = s
		}
	}
	if maxAbs > 32767 {
		maxAbs = 32767
	}
	return int16(maxAbs)
}
