package transcript

import (
	"strings"
	"sync"

	"github.com/skypro1111/stream-stt-service/internal/engine"
)

// Reconciler folds successive partial transcripts into one running
// text. Consecutive inference windows overlap in audio, so their texts
// overlap too; the reconciler deduplicates that shared region.
type Reconciler struct {
	mu          sync.RWMutex
	accumulated string
	partials    uint64
}

// ReconcilerStats represents transcript reconciler statistics.
type ReconcilerStats struct {
	Partials   uint64 `json:"partials"`
	TextLength int    `json:"text_length"`
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// MergeSegments folds the segments of one inference pass into the
// accumulated transcript and returns the updated text.
func (r *Reconciler) MergeSegments(segments []engine.Segment) string {
	part := JoinSegments(segments)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.accumulated = Merge(r.accumulated, part)
	if part != "" {
		r.partials++
	}
	return r.accumulated
}

// Text returns the accumulated transcript.
func (r *Reconciler) Text() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accumulated
}

// Reset clears the accumulated transcript.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accumulated = ""
	r.partials = 0
}

// GetStats returns current reconciler statistics.
func (r *Reconciler) GetStats() ReconcilerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ReconcilerStats{
		Partials:   r.partials,
		TextLength: len(r.accumulated),
	}
}

// Merge appends part to accum, dropping the longest exact suffix of
// accum that is also a prefix of part. When no overlap exists the two
// texts are joined with a single space.
func Merge(accum, part string) string {
	part = strings.TrimSpace(part)
	if part == "" {
		return accum
	}
	if accum == "" {
		return part
	}

	max := len(accum)
	if len(part) < max {
		max = len(part)
	}
	for n := max; n > 0; n-- {
		if accum[len(accum)-n:] == part[:n] {
			return accum + part[n:]
		}
	}
	return accum + " " + part
}

// JoinSegments concatenates segment texts with single spaces, skipping
// empty segments.
func JoinSegments(segments []engine.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
