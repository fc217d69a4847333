// Package session implements the per-stream transcription pipeline and
// its lifecycle: audio intake, windowing, adaptive inference pacing,
// transcript accumulation, and the final full-capture pass. A Manager
// tracks all live sessions and expires inactive ones.
package session
