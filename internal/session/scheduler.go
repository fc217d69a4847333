package session

import (
	"sync"
	"time"
)

const (
	// EWMA weight given to the newest inference duration.
	schedulerAlpha = 0.30
	// Headroom multiplied onto the average so the step stays ahead of
	// inference even as durations drift upward.
	schedulerSafetyFactor = 1.10
)

// Scheduler adapts the step size between inference passes to the
// observed inference duration. Slow inference stretches the step so
// audio does not pile up faster than it can be transcribed; fast
// inference shrinks it back toward the configured floor.
type Scheduler struct {
	mu        sync.RWMutex
	avgMs     float64
	minStepMs int
	maxStepMs int
}

// SchedulerStats represents scheduler statistics.
type SchedulerStats struct {
	AvgInferenceMs float64 `json:"avg_inference_ms"`
	NextStepMs     int     `json:"next_step_ms"`
}

// NewScheduler creates a scheduler seeded at the configured step size,
// so the first pass runs before any duration has been observed.
func NewScheduler(stepMs, minStepMs, maxStepMs int) *Scheduler {
	return &Scheduler{
		avgMs:     float64(stepMs),
		minStepMs: minStepMs,
		maxStepMs: maxStepMs,
	}
}

// Observe folds one inference duration into the running average.
// Failed passes are observed too since their wall time was still spent.
func (s *Scheduler) Observe(d time.Duration) {
	ms := float64(d.Milliseconds())
	if ms < 0 {
		ms = 0
	}

	s.mu.Lock()
	s.avgMs = (1-schedulerAlpha)*s.avgMs + schedulerAlpha*ms
	s.mu.Unlock()
}

// NextStepMs returns the step size for the next pass: the smoothed
// inference duration with safety headroom, clamped to the configured
// bounds.
func (s *Scheduler) NextStepMs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step := int(s.avgMs * schedulerSafetyFactor)
	if step < s.minStepMs {
		step = s.minStepMs
	}
	if step > s.maxStepMs {
		step = s.maxStepMs
	}
	return step
}

// GetStats returns current scheduler statistics.
func (s *Scheduler) GetStats() SchedulerStats {
	s.mu.RLock()
	avg := s.avgMs
	s.mu.RUnlock()

	return SchedulerStats{
		AvgInferenceMs: avg,
		NextStepMs:     s.NextStepMs(),
	}
}
