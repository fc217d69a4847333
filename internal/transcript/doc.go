// Package transcript accumulates per-window transcription results into
// a single running transcript, merging the overlap between consecutive
// windows so repeated text is not duplicated.
package transcript
