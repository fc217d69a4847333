package transcript

import (
	"testing"

	"github.com/skypro1111/stream-stt-service/internal/engine"
)

func TestMergeOverlap(t *testing.T) {
	tests := []struct {
		name  string
		accum string
		part  string
		want  string
	}{
		{"empty accumulator", "", "hello world", "hello world"},
		{"empty partial", "hello world", "", "hello world"},
		{"word overlap", "hello world", "world peace", "hello world peace"},
		{"full overlap", "hello world", "hello world", "hello world"},
		{"no overlap", "hello world", "goodbye", "hello world goodbye"},
		{"partial word overlap", "the quick bro", "brown fox", "the quick brown fox"},
		{"longest overlap wins", "ab ab", "ab ab cd", "ab ab cd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.accum, tt.part)
			if got != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q", tt.accum, tt.part, got, tt.want)
			}
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	accum := Merge("", "testing one two three")
	again := Merge(accum, "testing one two three")
	if again != accum {
		t.Errorf("Merging identical partial twice changed text: %q -> %q", accum, again)
	}
}

func TestReconcilerAccumulates(t *testing.T) {
	r := NewReconciler()

	text := r.MergeSegments([]engine.Segment{{Text: "hello world"}})
	if text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", text)
	}

	text = r.MergeSegments([]engine.Segment{{Text: "world peace"}})
	if text != "hello world peace" {
		t.Errorf("Expected 'hello world peace', got %q", text)
	}

	if r.Text() != "hello world peace" {
		t.Errorf("Text() mismatch: %q", r.Text())
	}

	stats := r.GetStats()
	if stats.Partials != 2 {
		t.Errorf("Expected 2 partials, got %d", stats.Partials)
	}
}

func TestReconcilerJoinsSegments(t *testing.T) {
	r := NewReconciler()

	text := r.MergeSegments([]engine.Segment{
		{Text: " one "},
		{Text: ""},
		{Text: "two"},
	})
	if text != "one two" {
		t.Errorf("Expected 'one two', got %q", text)
	}
}

func TestReconcilerEmptySegments(t *testing.T) {
	r := NewReconciler()
	r.MergeSegments([]engine.Segment{{Text: "keep me"}})

	text := r.MergeSegments(nil)
	if text != "keep me" {
		t.Errorf("Empty merge changed text to %q", text)
	}

	stats := r.GetStats()
	if stats.Partials != 1 {
		t.Errorf("Expected 1 partial after empty merge, got %d", stats.Partials)
	}
}

func TestReconcilerReset(t *testing.T) {
	r := NewReconciler()
	r.MergeSegments([]engine.Segment{{Text: "stale"}})
	r.Reset()

	if r.Text() != "" {
		t.Errorf("Expected empty text after reset, got %q", r.Text())
	}
}
