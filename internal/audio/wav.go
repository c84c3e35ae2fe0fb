package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVHeaderSize is the length of the canonical RIFF/WAVE header EncodeWAV writes.
const WAVHeaderSize = 44

const formatPCM = 1

var ErrNotWAV = errors.New("not a RIFF/WAVE container")

// Header describes the fmt and data chunks of a PCM WAV container.
type Header struct {
	Format     uint16
	Channels   int
	SampleRate int
	BitDepth   int
	ByteRate   int
	BlockAlign int
	DataLen    int
}

// EncodeWAV prepends a 44-byte RIFF header to raw little-endian PCM so
// players that refuse headerless LINEAR16 can play it.
func EncodeWAV(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign
	dataLen := len(pcm)

	buf := make([]byte, WAVHeaderSize+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[WAVHeaderSize:], pcm)
	return buf
}

// EncodeWireWAV wraps PCM in the wire format: 16 kHz, mono, 16-bit.
func EncodeWireWAV(pcm []byte) []byte {
	return EncodeWAV(pcm, WireSampleRate, 1, 16)
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// ParseWAVHeader reads the fmt and data chunk descriptors of a WAV container.
func ParseWAVHeader(data []byte) (Header, error) {
	if !IsWAV(data) {
		return Header{}, ErrNotWAV
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Header{}, fmt.Errorf("wav info: %w", err)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Header{}, fmt.Errorf("wav data chunk: %w", err)
	}
	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	return Header{
		Format:     dec.WavAudioFormat,
		Channels:   channels,
		SampleRate: int(dec.SampleRate),
		BitDepth:   bitDepth,
		ByteRate:   int(dec.AvgBytesPerSec),
		BlockAlign: channels * bitDepth / 8,
		DataLen:    dec.PCMSize,
	}, nil
}
