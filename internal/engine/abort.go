package engine

import "sync/atomic"

// AbortFlag is a cooperative cancellation signal shared between the
// invoker and a running transcription. Backends poll it between decode
// steps; setting it never interrupts a call forcibly.
type AbortFlag struct {
	set atomic.Bool
}

// Set asserts the flag.
func (f *AbortFlag) Set() {
	f.set.Store(true)
}

// Clear resets the flag.
func (f *AbortFlag) Clear() {
	f.set.Store(false)
}

// IsSet reports whether the flag is asserted.
func (f *AbortFlag) IsSet() bool {
	return f.set.Load()
}
