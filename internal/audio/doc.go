// Package audio provides the sample ring buffer, rolling window assembly
// and PCM conversion primitives used by the streaming transcription engine.
package audio
