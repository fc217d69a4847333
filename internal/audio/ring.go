package audio

import (
	"sync"
)

// Ring is a bounded FIFO of mono float32 samples shared between one
// producer (the feed path) and one consumer (the processing loop).
// Pop blocks until enough samples are available or the ring is finished;
// it returns zero samples exactly once to signal drained-and-finished.
type Ring struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []float32
	finished bool

	sampleRate int

	// Statistics
	totalPushed  uint64
	totalDropped uint64
}

// RingStats represents ring buffer statistics for monitoring.
type RingStats struct {
	BufferedSamples int    `json:"buffered_samples"`
	BufferedMs      int    `json:"buffered_ms"`
	TotalPushed     uint64 `json:"total_pushed"`
	TotalDropped    uint64 `json:"total_dropped"`
	Finished        bool   `json:"finished"`
}

// NewRing creates a new sample ring buffer for the given sample rate.
func NewRing(sampleRate int) *Ring {
	r := &Ring{
		buf:        make([]float32, 0, sampleRate*2),
		sampleRate: sampleRate,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Push appends samples and wakes any blocked popper. It is a no-op once
// the ring has been marked finished, so a racing producer cannot revive
// a closed stream.
func (r *Ring) Push(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	r.buf = append(r.buf, samples...)
	r.totalPushed += uint64(len(samples))
	r.cond.Broadcast()
}

// Pop blocks until n samples are available or the ring is finished, then
// removes and returns up to n samples. Fewer than n samples are returned
// only while draining a finished ring; a nil return means the ring is
// finished and empty.
func (r *Ring) Pop(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.finished && len(r.buf) < n {
		r.cond.Wait()
	}

	take := n
	if take > len(r.buf) {
		take = len(r.buf)
	}
	if take == 0 {
		return nil
	}

	out := make([]float32, take)
	copy(out, r.buf[:take])
	r.buf = r.buf[:copy(r.buf, r.buf[take:])]

	return out
}

// PopAll removes and returns everything currently buffered without
// blocking. Used for the end-of-stream flush.
func (r *Ring) PopAll() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		return nil
	}

	out := make([]float32, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]

	return out
}

// MarkFinished marks the ring as finished and wakes all blocked poppers.
// It is idempotent.
func (r *Ring) MarkFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = true
	r.cond.Broadcast()
}

// Drop discards the oldest n samples and returns how many were actually
// removed. Used by the cap-enforcement policy to shed backlog instead of
// stalling the producer.
func (r *Ring) Drop(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return 0
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}

	r.buf = r.buf[:copy(r.buf, r.buf[n:])]
	r.totalDropped += uint64(n)
	return n
}

// Len returns the current number of buffered samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// DurationMs returns the currently buffered duration in milliseconds.
func (r *Ring) DurationMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) * 1000 / r.sampleRate
}

// Finished reports whether the ring has been marked finished.
func (r *Ring) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// GetStats returns current ring buffer statistics.
func (r *Ring) GetStats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RingStats{
		BufferedSamples: len(r.buf),
		BufferedMs:      len(r.buf) * 1000 / r.sampleRate,
		TotalPushed:     r.totalPushed,
		TotalDropped:    r.totalDropped,
		Finished:        r.finished,
	}
}
