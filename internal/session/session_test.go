package session

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/skypro1111/stream-stt-service/internal/engine"
	"github.com/skypro1111/stream-stt-service/internal/vad"
)

// testConfig uses a low sample rate and a fixed small step so tests
// run fast without large sample buffers.
func testConfig() Config {
	return Config{
		SampleRate:       1000,
		StepMs:           100,
		LengthMs:         500,
		KeepMs:           50,
		RingCapMs:        2000,
		MinStepMs:        100,
		MaxStepMs:        100,
		StreamingEnabled: true,
	}
}

type resultCollector struct {
	mu       sync.Mutex
	partials []string
	finals   []string
}

func (c *resultCollector) onPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *resultCollector) onFinal(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, text)
}

func (c *resultCollector) snapshot() (partials, finals []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.partials...), append([]string(nil), c.finals...)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Session did not complete in time")
	}
}

func tone(n int, freq float64, sampleRate int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestSessionPartialsAndFinal(t *testing.T) {
	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	s := NewSession("test", testConfig(), inv, nil, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// One second of audio at 1 kHz: ten 100ms steps.
	s.Feed(tone(1000, 100, 1000))
	s.Finish()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) == 0 {
		t.Error("Expected at least one partial")
	}
	if len(finals) != 1 {
		t.Fatalf("Expected exactly one final, got %d", len(finals))
	}
	if finals[0] == "" {
		t.Error("Expected non-empty final transcript")
	}
	if s.State() != StateFinished {
		t.Errorf("Expected finished state, got %s", s.State())
	}
}

func TestSessionStreamingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.StreamingEnabled = false

	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	s := NewSession("test", cfg, inv, nil, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Feed(tone(1000, 100, 1000))
	s.Finish()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) != 0 {
		t.Errorf("Expected no partials with streaming disabled, got %d", len(partials))
	}
	if len(finals) != 1 {
		t.Fatalf("Expected exactly one final, got %d", len(finals))
	}
	if finals[0] == "" {
		t.Error("Expected non-empty final transcript")
	}

	// Only the terminal full pass touches the engine.
	if stats := inv.GetStats(); stats.Invocations != 1 {
		t.Errorf("Expected exactly one invocation, got %d", stats.Invocations)
	}
}

func TestSessionGateSuppressesSilence(t *testing.T) {
	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	gate, err := vad.NewGate(vad.NewEnergyDetector(0, 1000), 0.5)
	if err != nil {
		t.Fatalf("Failed to create gate: %v", err)
	}
	s := NewSession("test", testConfig(), inv, gate, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Half a second of silence followed by half a second of tone.
	s.Feed(make([]float32, 500))
	s.Feed(tone(500, 100, 1000))
	s.Finish()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) == 0 {
		t.Error("Expected partials for the voiced portion")
	}
	if len(finals) != 1 {
		t.Fatalf("Expected exactly one final, got %d", len(finals))
	}

	info := s.GetInfo()
	if info.GateSkips == 0 {
		t.Error("Expected gate to skip silent steps")
	}
	// Gated-out audio never enters the capture.
	if info.CapturedMs > 600 {
		t.Errorf("Expected capture to exclude silence, got %d ms", info.CapturedMs)
	}
}

func TestSessionSilenceOnlyProducesEmptyFinal(t *testing.T) {
	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	gate, err := vad.NewGate(vad.NewEnergyDetector(0, 1000), 0.5)
	if err != nil {
		t.Fatalf("Failed to create gate: %v", err)
	}
	s := NewSession("test", testConfig(), inv, gate, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Feed(make([]float32, 1000))
	s.Finish()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) != 0 {
		t.Errorf("Expected no partials for silence, got %d", len(partials))
	}
	if len(finals) != 1 || finals[0] != "" {
		t.Fatalf("Expected one empty final, got %v", finals)
	}
}

func TestSessionEmptyCapture(t *testing.T) {
	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	s := NewSession("test", testConfig(), inv, nil, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Finish()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) != 0 {
		t.Errorf("Expected no partials, got %d", len(partials))
	}
	if len(finals) != 1 || finals[0] != "" {
		t.Fatalf("Expected one empty final, got %v", finals)
	}

	// No audio means the engine is never invoked.
	if stats := inv.GetStats(); stats.Invocations != 0 {
		t.Errorf("Expected zero invocations, got %d", stats.Invocations)
	}
}

func TestSessionFeedIgnoredOutsideStreaming(t *testing.T) {
	col := &resultCollector{}
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	s := NewSession("test", testConfig(), inv, nil, nil, nil, col.onPartial, col.onFinal)

	// Feed before Start is discarded.
	s.Feed(tone(1000, 100, 1000))

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Finish()

	// Feed after Finish is discarded too.
	s.Feed(tone(1000, 100, 1000))
	waitDone(t, s)

	_, finals := col.snapshot()
	if len(finals) != 1 || finals[0] != "" {
		t.Fatalf("Expected one empty final, got %v", finals)
	}
}

func TestSessionDoubleStartFails(t *testing.T) {
	inv := engine.NewInvoker(engine.NewStubTranscriber(nil, 0), nil)
	s := NewSession("test", testConfig(), inv, nil, nil, nil, nil, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("Expected error on second start")
	}
	s.Finish()
	waitDone(t, s)
}

// abortProbeTranscriber blocks its first call until the abort flag is
// set, then answers normally, so tests can abort mid-inference.
type abortProbeTranscriber struct {
	entered chan struct{}
	once    sync.Once
	mu      sync.Mutex
	calls   int
}

func (tr *abortProbeTranscriber) Transcribe(samples []float32, sampleRate int, abort *engine.AbortFlag) ([]engine.Segment, error) {
	tr.mu.Lock()
	tr.calls++
	call := tr.calls
	tr.mu.Unlock()

	if call == 1 {
		tr.once.Do(func() { close(tr.entered) })
		for !abort.IsSet() {
			time.Sleep(time.Millisecond)
		}
		return nil, nil
	}
	return []engine.Segment{{Text: "final text", StartMs: 0, EndMs: 100}}, nil
}

func (tr *abortProbeTranscriber) Close() error { return nil }

func TestSessionAbort(t *testing.T) {
	col := &resultCollector{}
	tr := &abortProbeTranscriber{entered: make(chan struct{})}
	inv := engine.NewInvoker(tr, nil)
	s := NewSession("test", testConfig(), inv, nil, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Feed(tone(1000, 100, 1000))

	select {
	case <-tr.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Inference never started")
	}

	s.Abort()
	waitDone(t, s)

	partials, finals := col.snapshot()
	if len(partials) != 0 {
		t.Errorf("Expected no partials after abort, got %d", len(partials))
	}
	if len(finals) != 1 {
		t.Fatalf("Expected exactly one final, got %d", len(finals))
	}
	// The final pass runs with a cleared abort flag.
	if finals[0] != "final text" {
		t.Errorf("Expected final pass result, got %q", finals[0])
	}
	if s.State() != StateAborted {
		t.Errorf("Expected aborted state, got %s", s.State())
	}
}

func TestSessionRingCapDropsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.RingCapMs = 300

	tr := &abortProbeTranscriber{entered: make(chan struct{})}
	inv := engine.NewInvoker(tr, nil)
	col := &resultCollector{}
	s := NewSession("test", cfg, inv, nil, nil, nil, col.onPartial, col.onFinal)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// First step enters the blocked inference; keep feeding past the
	// 300ms cap while the consumer is stuck.
	s.Feed(tone(100, 100, 1000))
	select {
	case <-tr.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Inference never started")
	}

	s.Feed(tone(1000, 100, 1000))

	info := s.GetInfo()
	if info.Ring.TotalDropped == 0 {
		t.Error("Expected ring to drop samples past capacity")
	}

	s.Abort()
	waitDone(t, s)
}

func TestConfigNormalization(t *testing.T) {
	cfg := Config{
		SampleRate: 16000,
		StepMs:     500,
		LengthMs:   200,  // shorter than step
		KeepMs:     1000, // longer than step
	}
	norm := cfg.normalized()

	if norm.LengthMs != 500 {
		t.Errorf("Expected length raised to step, got %d", norm.LengthMs)
	}
	if norm.KeepMs != 500 {
		t.Errorf("Expected keep lowered to step, got %d", norm.KeepMs)
	}
	if norm.MinStepMs != 400 || norm.MaxStepMs != 400 {
		t.Errorf("Expected default step bounds, got %d..%d", norm.MinStepMs, norm.MaxStepMs)
	}
}
