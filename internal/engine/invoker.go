package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Invoker serializes inference calls against a single Transcriber and
// measures their wall-clock duration. At most one call is in flight at
// a time; the abort flag it owns lets a caller cut a running call short
// without tearing down the backend.
type Invoker struct {
	transcriber Transcriber
	logger      *slog.Logger

	runMu sync.Mutex
	abort AbortFlag

	// Statistics
	invocations   uint64
	failures      uint64
	totalDuration time.Duration
	mu            sync.RWMutex
}

// InvokerStats represents inference invoker statistics.
type InvokerStats struct {
	Invocations     uint64  `json:"invocations"`
	Failures        uint64  `json:"failures"`
	TotalDurationMs int64   `json:"total_duration_ms"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
}

// NewInvoker creates an invoker over the given backend.
func NewInvoker(transcriber Transcriber, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		transcriber: transcriber,
		logger:      logger,
	}
}

// Invoke runs one transcription and returns the segments together with
// the measured wall-clock duration. The abort flag is cleared before
// the call starts, so an abort requested during one call never bleeds
// into the next.
func (inv *Invoker) Invoke(samples []float32, sampleRate int) ([]Segment, time.Duration, error) {
	inv.runMu.Lock()
	defer inv.runMu.Unlock()

	inv.abort.Clear()

	start := time.Now()
	segments, err := inv.transcriber.Transcribe(samples, sampleRate, &inv.abort)
	elapsed := time.Since(start)

	inv.mu.Lock()
	inv.invocations++
	inv.totalDuration += elapsed
	if err != nil {
		inv.failures++
	}
	inv.mu.Unlock()

	if err != nil {
		inv.logger.Warn("Inference failed",
			slog.Int("samples", len(samples)),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return nil, elapsed, err
	}

	inv.logger.Debug("Inference completed",
		slog.Int("samples", len(samples)),
		slog.Int("segments", len(segments)),
		slog.Duration("duration", elapsed))

	return segments, elapsed, nil
}

// Abort requests that the current inference, if any, stop early.
func (inv *Invoker) Abort() {
	inv.abort.Set()
}

// Close releases the underlying backend.
func (inv *Invoker) Close() error {
	return inv.transcriber.Close()
}

// GetStats returns current invoker statistics.
func (inv *Invoker) GetStats() InvokerStats {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	avg := float64(0)
	if inv.invocations > 0 {
		avg = float64(inv.totalDuration.Milliseconds()) / float64(inv.invocations)
	}

	return InvokerStats{
		Invocations:     inv.invocations,
		Failures:        inv.failures,
		TotalDurationMs: inv.totalDuration.Milliseconds(),
		AvgDurationMs:   avg,
	}
}
