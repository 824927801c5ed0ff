package audio

import "encoding/binary"

// Resample converts normalised samples from srcRate to dstRate by
// nearest-sample decimation: output index i maps to input index
// floor(i × srcRate / dstRate). No interpolation filter is applied — this is
// a latency-over-fidelity tradeoff that is adequate for speech input.
// The output length is exactly floor(len(in) × dstRate / srcRate).
// If srcRate == dstRate the input slice is returned unchanged.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return in
	}
	if srcRate == dstRate || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range n {
		out[i] = in[int(int64(i)*int64(srcRate)/int64(dstRate))]
	}
	return out
}

// QuantizePCM16 converts normalised float samples to little-endian 16-bit
// signed PCM. Each sample is clamped to [-1.0, 1.0] before scaling by 32767,
// so out-of-range input cannot wrap around.
func QuantizePCM16(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit signed PCM to normalised
// float32 samples in [-1.0, 1.0]. Any trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:i*2+2]))) / 32768.0
	}
	return out
}

// DownmixMono averages interleaved multi-channel samples into mono. If
// channels <= 1 the input is returned unchanged.
func DownmixMono(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += in[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
