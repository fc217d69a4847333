package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StubTranscriber produces deterministic transcripts without a real
// model. It is useful for integration tests and for running the service
// before a backend is wired in. Safe for use from multiple sessions.
type StubTranscriber struct {
	logger *slog.Logger
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

// NewStubTranscriber returns a Transcriber that generates placeholder
// transcripts. A non-zero delay simulates decode latency, checking the
// abort flag once per millisecond.
func NewStubTranscriber(logger *slog.Logger, delay time.Duration) *StubTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubTranscriber{logger: logger, delay: delay}
}

// Transcribe implements the Transcriber interface.
func (s *StubTranscriber) Transcribe(samples []float32, sampleRate int, abort *AbortFlag) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	deadline := time.Now().Add(s.delay)
	for time.Now().Before(deadline) {
		if abort != nil && abort.IsSet() {
			s.logger.Debug("Stub transcription aborted")
			return nil, nil
		}
		time.Sleep(time.Millisecond)
	}

	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	durationMs := int64(len(samples)) * 1000 / int64(sampleRate)
	text := fmt.Sprintf("stub segment %d", call)

	s.logger.Debug("Stub transcription",
		slog.Int("call", call),
		slog.Int("samples", len(samples)),
		slog.Int64("duration_ms", durationMs))

	return []Segment{
		{Text: text, StartMs: 0, EndMs: durationMs},
	}, nil
}

// Close implements the Transcriber interface.
func (s *StubTranscriber) Close() error {
	return nil
}
