package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/stream-stt-service/internal/audio"
	"github.com/skypro1111/stream-stt-service/internal/engine"
	"github.com/skypro1111/stream-stt-service/internal/metrics"
	"github.com/skypro1111/stream-stt-service/internal/transcript"
	"github.com/skypro1111/stream-stt-service/internal/vad"
)

// State represents the lifecycle phase of a session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateFinished
	StateAborted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config holds the audio pipeline parameters for one session.
type Config struct {
	SampleRate       int
	StepMs           int
	LengthMs         int
	KeepMs           int
	RingCapMs        int
	MinStepMs        int
	MaxStepMs        int
	StreamingEnabled bool
}

// DefaultConfig returns the standard pipeline parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		StepMs:           500,
		LengthMs:         10000,
		KeepMs:           200,
		RingCapMs:        20000,
		MinStepMs:        400,
		MaxStepMs:        2000,
		StreamingEnabled: true,
	}
}

// normalized applies the parameter coupling rules: the window length is
// at least one step, and the carried context never exceeds one step.
func (c Config) normalized() Config {
	out := c
	if out.SampleRate <= 0 {
		out.SampleRate = 16000
	}
	if out.StepMs <= 0 {
		out.StepMs = 500
	}
	if out.LengthMs < out.StepMs {
		out.LengthMs = out.StepMs
	}
	if out.KeepMs > out.StepMs {
		out.KeepMs = out.StepMs
	}
	if out.KeepMs < 0 {
		out.KeepMs = 0
	}
	if out.RingCapMs <= 0 {
		out.RingCapMs = 20000
	}
	if out.MinStepMs <= 0 {
		out.MinStepMs = 400
	}
	if out.MaxStepMs < out.MinStepMs {
		out.MaxStepMs = out.MinStepMs
	}
	return out
}

// Session drives one audio stream through the transcription pipeline:
// intake ring, speech gate, window assembly, paced inference, and
// transcript accumulation, ending with a full-capture final pass.
type Session struct {
	ID        string
	StartTime time.Time

	cfg        Config
	ring       *audio.Ring
	assembler  *audio.Assembler
	gate       *vad.Gate
	invoker    *engine.Invoker
	reconciler *transcript.Reconciler
	scheduler  *Scheduler
	logger     *slog.Logger
	metrics    *metrics.Metrics

	onPartial func(text string)
	onFinal   func(text string)

	mu               sync.RWMutex
	state            State
	lastActivity     time.Time
	rawHistory       []float32
	capSamples       int
	windowsProcessed uint64
	gateSkips        uint64

	done chan struct{}
}

// SessionInfo represents session information for monitoring and APIs.
type SessionInfo struct {
	ID               string              `json:"id"`
	State            string              `json:"state"`
	StartTime        time.Time           `json:"start_time"`
	LastActivity     time.Time           `json:"last_activity"`
	DurationSec      float64             `json:"duration_sec"`
	CapturedMs       int                 `json:"captured_ms"`
	WindowsProcessed uint64              `json:"windows_processed"`
	GateSkips        uint64              `json:"gate_skips"`
	TranscriptLength int                 `json:"transcript_length"`
	Ring             audio.RingStats     `json:"ring"`
	Scheduler        SchedulerStats      `json:"scheduler"`
	Invoker          engine.InvokerStats `json:"invoker"`
}

// NewSession creates a session in the idle state. The gate may be nil
// to disable speech gating; callbacks may be nil.
func NewSession(id string, cfg Config, invoker *engine.Invoker, gate *vad.Gate,
	m *metrics.Metrics, logger *slog.Logger,
	onPartial, onFinal func(text string)) *Session {

	cfg = cfg.normalized()
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	return &Session{
		ID:           id,
		StartTime:    now,
		cfg:          cfg,
		ring:         audio.NewRing(cfg.SampleRate),
		assembler:    audio.NewAssembler(cfg.KeepMs, cfg.LengthMs, cfg.SampleRate),
		gate:         gate,
		invoker:      invoker,
		reconciler:   transcript.NewReconciler(),
		scheduler:    NewScheduler(cfg.StepMs, cfg.MinStepMs, cfg.MaxStepMs),
		logger:       logger.With(slog.String("session_id", id)),
		metrics:      m,
		onPartial:    onPartial,
		onFinal:      onFinal,
		state:        StateIdle,
		lastActivity: now,
		capSamples:   audio.SamplesForMs(cfg.RingCapMs, cfg.SampleRate),
		done:         make(chan struct{}),
	}
}

// Start transitions the session to streaming and launches the
// processing loop.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start session in state %s", state)
	}
	s.state = StateStreaming
	s.mu.Unlock()

	s.logger.Info("Session started",
		slog.Int("sample_rate", s.cfg.SampleRate),
		slog.Int("step_ms", s.cfg.StepMs),
		slog.Int("length_ms", s.cfg.LengthMs),
		slog.Int("keep_ms", s.cfg.KeepMs),
		slog.Bool("streaming_enabled", s.cfg.StreamingEnabled),
		slog.Bool("gate_enabled", s.gate != nil))

	go s.run()
	return nil
}

// Feed appends samples to the intake ring. Outside the streaming state
// the samples are discarded. When the ring exceeds its capacity the
// oldest samples are dropped first.
func (s *Session) Feed(samples []float32) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.ring.Push(samples)

	if excess := s.ring.Len() - s.capSamples; excess > 0 {
		dropped := s.ring.Drop(excess)
		if dropped > 0 {
			s.logger.Warn("Intake ring over capacity, dropped oldest samples",
				slog.Int("dropped", dropped),
				slog.Int("cap_ms", s.cfg.RingCapMs))
			if s.metrics != nil {
				s.metrics.SamplesDropped.Add(float64(dropped))
			}
		}
	}
}

// Finish signals end of input. The processing loop drains what remains
// in the ring and then performs the final pass.
func (s *Session) Finish() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.state = StateDraining
	s.mu.Unlock()

	s.logger.Info("Session draining")
	s.ring.MarkFinished()
}

// Abort cuts the session short: the current inference is signalled to
// stop, no further partials are emitted, and the final pass runs over
// whatever was captured so far.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state != StateStreaming && s.state != StateDraining {
		s.mu.Unlock()
		return
	}
	s.state = StateAborted
	s.mu.Unlock()

	s.logger.Info("Session aborted")
	s.invoker.Abort()
	s.ring.MarkFinished()
}

// Done returns a channel closed once the final result has been emitted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session has emitted its final result.
func (s *Session) Wait() {
	<-s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transcript returns the accumulated partial transcript so far.
func (s *Session) Transcript() string {
	return s.reconciler.Text()
}

// run is the processing loop: it pops one step of audio at a time,
// gates it, assembles the inference window, invokes the engine, and
// folds the result into the running transcript. When the ring drains
// after Finish or Abort, the loop exits and the final pass runs.
func (s *Session) run() {
	defer close(s.done)

	for {
		stepMs := s.scheduler.NextStepMs()
		step := s.ring.Pop(audio.SamplesForMs(stepMs, s.cfg.SampleRate))
		if step == nil {
			break
		}

		if s.State() == StateAborted {
			// Keep the samples for the final pass but skip inference.
			s.appendHistory(step)
			s.assembler.Skip(len(step))
			continue
		}

		if s.gate != nil && !s.gate.IsSpeech(step) {
			s.assembler.Skip(len(step))
			s.mu.Lock()
			s.gateSkips++
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.GateSkips.Inc()
			}
			continue
		}

		// With streaming disabled only the terminal full pass runs;
		// audio is captured without per-window inference.
		if !s.cfg.StreamingEnabled {
			s.appendHistory(step)
			s.assembler.Skip(len(step))
			continue
		}

		s.appendHistory(step)
		window := s.assembler.Next(step)

		segments, elapsed, err := s.invoker.Invoke(window.Samples, s.cfg.SampleRate)
		s.scheduler.Observe(elapsed)

		s.mu.Lock()
		s.windowsProcessed++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.WindowsProcessed.Inc()
			s.metrics.InferenceDuration.Observe(elapsed.Seconds())
			if err != nil {
				s.metrics.InferenceFailures.Inc()
			}
		}

		if err != nil {
			s.logger.Warn("Window inference failed, skipping",
				slog.Int("offset_ms", window.OffsetMs),
				slog.String("error", err.Error()))
			continue
		}

		text := s.reconciler.MergeSegments(segments)

		if s.State() != StateAborted && s.onPartial != nil {
			s.onPartial(text)
			if s.metrics != nil {
				s.metrics.PartialsEmitted.Inc()
			}
		}
	}

	s.finalPass()
}

// finalPass transcribes the entire captured audio in one pass and emits
// exactly one final result. The abort flag is never asserted for this
// pass; an inference failure here falls back to the accumulated partial
// transcript.
func (s *Session) finalPass() {
	s.mu.Lock()
	history := s.rawHistory
	aborted := s.state == StateAborted
	s.mu.Unlock()

	var finalText string
	if len(history) > 0 {
		segments, elapsed, err := s.invoker.Invoke(history, s.cfg.SampleRate)
		if s.metrics != nil {
			s.metrics.InferenceDuration.Observe(elapsed.Seconds())
		}
		if err != nil {
			finalText = s.reconciler.Text()
			s.logger.Error("Final pass failed, emitting accumulated transcript",
				slog.Int("samples", len(history)),
				slog.String("error", err.Error()))
			if s.metrics != nil {
				s.metrics.InferenceFailures.Inc()
			}
		} else {
			finalText = transcript.JoinSegments(segments)
		}
	}

	s.mu.Lock()
	if s.state != StateAborted {
		s.state = StateFinished
	}
	s.mu.Unlock()

	if s.onFinal != nil {
		s.onFinal(finalText)
	}
	if s.metrics != nil {
		s.metrics.FinalsEmitted.Inc()
	}

	s.logger.Info("Session completed",
		slog.String("state", s.State().String()),
		slog.Int("captured_ms", audio.MsForSamples(len(history), s.cfg.SampleRate)),
		slog.Int("final_length", len(finalText)),
		slog.Bool("aborted", aborted),
		slog.Duration("duration", time.Since(s.StartTime)))
}

func (s *Session) appendHistory(step []float32) {
	s.mu.Lock()
	s.rawHistory = append(s.rawHistory, step...)
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent audio intake.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// GetInfo returns a snapshot of the session for monitoring.
func (s *Session) GetInfo() SessionInfo {
	s.mu.RLock()
	state := s.state
	lastActivity := s.lastActivity
	capturedMs := audio.MsForSamples(len(s.rawHistory), s.cfg.SampleRate)
	windows := s.windowsProcessed
	skips := s.gateSkips
	s.mu.RUnlock()

	return SessionInfo{
		ID:               s.ID,
		State:            state.String(),
		StartTime:        s.StartTime,
		LastActivity:     lastActivity,
		DurationSec:      time.Since(s.StartTime).Seconds(),
		CapturedMs:       capturedMs,
		WindowsProcessed: windows,
		GateSkips:        skips,
		TranscriptLength: len(s.reconciler.Text()),
		Ring:             s.ring.GetStats(),
		Scheduler:        s.scheduler.GetStats(),
		Invoker:          s.invoker.GetStats(),
	}
}
