package audio

import (
	"encoding/binary"
	"math"
)

// WireSampleRate is the LINEAR16 rate the simulation backend speaks.
const WireSampleRate = 16000

// PCM16ToFloat converts little-endian signed 16-bit samples to [-1, 1].
// A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}

// FloatToPCM16 is the inverse of PCM16ToFloat, clamping out-of-range samples.
func FloatToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		clamped := max(-1.0, min(1.0, s))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(clamped*math.MaxInt16)))
	}
	return buf
}

// DownmixPCM16 averages interleaved channels into mono.
func DownmixPCM16(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}
	frame := channels * 2
	frames := len(data) / frame
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int
		for c := range channels {
			sum += int(int16(binary.LittleEndian.Uint16(data[i*frame+c*2:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/channels)))
	}
	return out
}
