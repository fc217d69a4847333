package engine

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedTranscriber struct {
	mu       sync.Mutex
	calls    int
	failOn   int
	lastFlag *AbortFlag
}

func (s *scriptedTranscriber) Transcribe(samples []float32, sampleRate int, abort *AbortFlag) ([]Segment, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.lastFlag = abort
	s.mu.Unlock()

	if s.failOn > 0 && call == s.failOn {
		return nil, errors.New("decode failed")
	}
	return []Segment{{Text: "ok", StartMs: 0, EndMs: 100}}, nil
}

func (s *scriptedTranscriber) Close() error { return nil }

func TestInvokerSuccess(t *testing.T) {
	inv := NewInvoker(&scriptedTranscriber{}, nil)

	segments, elapsed, err := inv.Invoke(make([]float32, 1600), 16000)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "ok" {
		t.Errorf("Unexpected segments: %+v", segments)
	}
	if elapsed < 0 {
		t.Errorf("Expected non-negative duration, got %v", elapsed)
	}

	stats := inv.GetStats()
	if stats.Invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", stats.Invocations)
	}
	if stats.Failures != 0 {
		t.Errorf("Expected 0 failures, got %d", stats.Failures)
	}
}

func TestInvokerCountsFailures(t *testing.T) {
	inv := NewInvoker(&scriptedTranscriber{failOn: 2}, nil)

	if _, _, err := inv.Invoke(make([]float32, 160), 16000); err != nil {
		t.Fatalf("First invoke failed: %v", err)
	}
	if _, _, err := inv.Invoke(make([]float32, 160), 16000); err == nil {
		t.Fatal("Expected error on second invoke")
	}

	stats := inv.GetStats()
	if stats.Invocations != 2 {
		t.Errorf("Expected 2 invocations, got %d", stats.Invocations)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}

func TestInvokerClearsAbortBeforeCall(t *testing.T) {
	tr := &scriptedTranscriber{}
	inv := NewInvoker(tr, nil)

	inv.Abort()
	if _, _, err := inv.Invoke(make([]float32, 160), 16000); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if tr.lastFlag.IsSet() {
		t.Error("Expected abort flag cleared before invocation")
	}
}

func TestStubTranscriberAbort(t *testing.T) {
	stub := NewStubTranscriber(nil, 500*time.Millisecond)
	var flag AbortFlag
	flag.Set()

	start := time.Now()
	segments, err := stub.Transcribe(make([]float32, 1600), 16000, &flag)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if segments != nil {
		t.Errorf("Expected no segments from aborted call, got %+v", segments)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Error("Aborted call took too long")
	}
}

func TestFactory(t *testing.T) {
	tr, err := New("stub", nil)
	if err != nil {
		t.Fatalf("Factory failed for stub: %v", err)
	}
	if tr == nil {
		t.Fatal("Expected non-nil transcriber")
	}

	if _, err := New("nonexistent", nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
