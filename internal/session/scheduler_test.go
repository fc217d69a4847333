package session

import (
	"testing"
	"time"
)

func TestSchedulerSeededFromStep(t *testing.T) {
	s := NewScheduler(500, 400, 2000)

	// 500ms average with 1.10 headroom.
	if got := s.NextStepMs(); got != 550 {
		t.Errorf("Expected initial step 550, got %d", got)
	}
}

func TestSchedulerConvergesToFloor(t *testing.T) {
	s := NewScheduler(500, 400, 2000)

	for i := 0; i < 50; i++ {
		s.Observe(10 * time.Millisecond)
	}

	if got := s.NextStepMs(); got != 400 {
		t.Errorf("Expected step clamped to floor 400, got %d", got)
	}
}

func TestSchedulerClampsToCeiling(t *testing.T) {
	s := NewScheduler(500, 400, 2000)

	for i := 0; i < 50; i++ {
		s.Observe(10 * time.Second)
	}

	if got := s.NextStepMs(); got != 2000 {
		t.Errorf("Expected step clamped to ceiling 2000, got %d", got)
	}
}

func TestSchedulerStaysWithinBounds(t *testing.T) {
	s := NewScheduler(500, 400, 2000)

	durations := []time.Duration{
		0, time.Millisecond, 100 * time.Millisecond,
		time.Second, 30 * time.Second, 5 * time.Millisecond,
	}
	for _, d := range durations {
		s.Observe(d)
		step := s.NextStepMs()
		if step < 400 || step > 2000 {
			t.Fatalf("Step %d out of bounds after observing %v", step, d)
		}
	}
}

func TestSchedulerTracksSlowInference(t *testing.T) {
	s := NewScheduler(500, 400, 2000)

	s.Observe(1500 * time.Millisecond)
	after := s.NextStepMs()
	if after <= 550 {
		t.Errorf("Expected step to grow after slow inference, got %d", after)
	}

	stats := s.GetStats()
	if stats.AvgInferenceMs <= 500 {
		t.Errorf("Expected average above seed, got %f", stats.AvgInferenceMs)
	}
}
