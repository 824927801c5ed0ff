package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeader is the 44-byte canonical RIFF/WAVE header for 16-bit PCM.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// ErrEmptyContainer is returned when a container is finalised with no audio.
var ErrEmptyContainer = errors.New("audio: cannot finalise empty container")

// ContainerEncoder frames raw PCM16 audio into a WAV container incrementally.
// Write appends encoded payload units as they are produced; Bytes seals the
// container and emits the full blob, including whatever partial payload has
// accumulated. The zero value is not usable; create one with
// [NewContainerEncoder].
type ContainerEncoder struct {
	sampleRate int
	channels   int
	data       []byte
}

// NewContainerEncoder creates a WAV container encoder for little-endian
// 16-bit PCM at the given sample rate and channel count.
func NewContainerEncoder(sampleRate, channels int) *ContainerEncoder {
	return &ContainerEncoder{sampleRate: sampleRate, channels: channels}
}

// Write appends a PCM16 payload unit to the container body.
func (e *ContainerEncoder) Write(pcm []byte) {
	e.data = append(e.data, pcm...)
}

// Bytes seals the container and returns the complete WAV blob. The encoder
// remains valid afterwards; further Writes extend the payload and a later
// Bytes call re-seals it.
func (e *ContainerEncoder) Bytes() ([]byte, error) {
	if len(e.data) == 0 {
		return nil, ErrEmptyContainer
	}
	return EncodeWAV(e.data, e.sampleRate, e.channels)
}

// EncodeWAV wraps little-endian PCM16 audio in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: channel count must be positive, got %d", channels)
	}

	const bitsPerSample = 16
	dataSize := uint32(len(pcm))
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * bitsPerSample / 8,
		BlockAlign:    uint16(channels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("audio: write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// DecodeWAV extracts the PCM16 payload and format from a WAV blob. Only
// canonical 16-bit PCM files are supported.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < wavHeaderSize {
		return nil, Format{}, fmt.Errorf("audio: WAV data too short: %d bytes", len(data))
	}

	var h wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, Format{}, fmt.Errorf("audio: read WAV header: %w", err)
	}

	switch {
	case string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE":
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE file")
	case string(h.Subchunk1ID[:]) != "fmt ":
		return nil, Format{}, errors.New("audio: missing fmt chunk")
	case string(h.Subchunk2ID[:]) != "data":
		return nil, Format{}, errors.New("audio: missing data chunk")
	case h.AudioFormat != 1:
		return nil, Format{}, fmt.Errorf("audio: unsupported WAV format %d (PCM only)", h.AudioFormat)
	case h.BitsPerSample != 16:
		return nil, Format{}, fmt.Errorf("audio: unsupported bit depth %d (16-bit only)", h.BitsPerSample)
	case h.NumChannels == 0:
		return nil, Format{}, errors.New("audio: zero channel count")
	}

	payload := data[wavHeaderSize:]
	if int(h.Subchunk2Size) < len(payload) {
		payload = payload[:h.Subchunk2Size]
	}
	return payload, Format{SampleRate: int(h.SampleRate), Channels: int(h.NumChannels)}, nil
}
