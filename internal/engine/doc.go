// Package engine defines the transcription backend interface, the
// cooperative abort flag, and the invoker that serializes inference
// calls and measures their wall-clock duration.
package engine
