package engine

import (
	"fmt"
	"log/slog"
)

// New resolves a backend name to a Transcriber. "stub" is always
// available; other names are reserved for linked-in native backends.
func New(backend string, logger *slog.Logger) (Transcriber, error) {
	switch backend {
	case "", "stub":
		return NewStubTranscriber(logger, 0), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", backend)
	}
}
