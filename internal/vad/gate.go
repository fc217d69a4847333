package vad

import (
	"fmt"
	"math"
	"sync"
)

// Detector is the voice-activity oracle consumed by the gate. It returns
// the probability (0.0 - 1.0) that the given samples contain speech.
type Detector interface {
	SpeechProbability(samples []float32) float32
}

// Gate filters windows before inference. It is a pure filter: it never
// mutates the samples it inspects and keeps only its own statistics.
type Gate struct {
	detector  Detector
	threshold float32

	// Statistics
	totalWindows uint64
	voiceWindows uint64
	mu           sync.RWMutex
}

// GateStats represents speech gate statistics.
type GateStats struct {
	TotalWindows    uint64  `json:"total_windows"`
	VoiceWindows    uint64  `json:"voice_windows"`
	VoicePercentage float64 `json:"voice_percentage"`
	Threshold       float32 `json:"threshold"`
}

// NewGate creates a speech gate over the given detector.
func NewGate(detector Detector, threshold float32) (*Gate, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	return &Gate{detector: detector, threshold: threshold}, nil
}

// IsSpeech reports whether the samples should be transcribed.
func (g *Gate) IsSpeech(samples []float32) bool {
	prob := g.detector.SpeechProbability(samples)
	hasVoice := prob >= g.threshold

	g.mu.Lock()
	g.totalWindows++
	if hasVoice {
		g.voiceWindows++
	}
	g.mu.Unlock()

	return hasVoice
}

// GetStats returns current gate statistics.
func (g *Gate) GetStats() GateStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	voicePercentage := float64(0)
	if g.totalWindows > 0 {
		voicePercentage = float64(g.voiceWindows) / float64(g.totalWindows) * 100
	}

	return GateStats{
		TotalWindows:    g.totalWindows,
		VoiceWindows:    g.voiceWindows,
		VoicePercentage: voicePercentage,
		Threshold:       g.threshold,
	}
}

// EnergyDetector is a lightweight built-in detector: a one-pole high-pass
// filter to strip DC and low-frequency rumble, then normalized RMS energy
// as the speech probability.
type EnergyDetector struct {
	highPassHz float32
	sampleRate int
}

// NewEnergyDetector creates an energy-based detector. A highPassHz of 0
// disables the prefilter.
func NewEnergyDetector(highPassHz float32, sampleRate int) *EnergyDetector {
	return &EnergyDetector{
		highPassHz: highPassHz,
		sampleRate: sampleRate,
	}
}

// SpeechProbability implements the Detector interface.
func (d *EnergyDetector) SpeechProbability(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	work := samples
	if d.highPassHz > 0 {
		work = make([]float32, len(samples))
		rc := 1.0 / (2.0 * math.Pi * float64(d.highPassHz))
		dt := 1.0 / float64(d.sampleRate)
		alpha := float32(rc / (rc + dt))

		work[0] = samples[0]
		for i := 1; i < len(samples); i++ {
			work[i] = alpha * (work[i-1] + samples[i] - samples[i-1])
		}
	}

	var energy float64
	for _, s := range work {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(work)))

	// Normalize: conversational speech at normal levels sits well above
	// 0.02 RMS in [-1,1) PCM, so scale that to probability 1.
	prob := rms / 0.02
	if prob > 1 {
		prob = 1
	}
	return float32(prob)
}
