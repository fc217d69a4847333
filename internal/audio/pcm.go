package audio

import "encoding/binary"

// DecodePCM16 converts 16-bit little-endian mono PCM bytes into float32
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(data[2*i:])
		samples[i] = float32(int16(u)) / 32768.0
	}
	return samples
}

// SamplesForMs returns the number of samples covering ms milliseconds at
// the given sample rate.
func SamplesForMs(ms, sampleRate int) int {
	return ms * sampleRate / 1000
}

// MsForSamples returns the duration in milliseconds of n samples at the
// given sample rate.
func MsForSamples(n, sampleRate int) int {
	return n * 1000 / sampleRate
}
