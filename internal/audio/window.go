package audio

// Window is the contiguous sample buffer handed to one inference call.
// OffsetMs is the elapsed stream time at its first sample, so segment
// timestamps can be mapped back onto the source.
type Window struct {
	Samples  []float32
	OffsetMs int
}

// Assembler builds successive inference windows from newly popped step
// samples plus a retained tail of the previous window. Re-hearing the
// tail gives word fragments that straddled a step boundary enough left
// context to be transcribed whole on the next pass.
type Assembler struct {
	keepSamples   int
	lengthSamples int
	sampleRate    int

	tail    []float32
	elapsed int // total step samples consumed so far
}

// NewAssembler creates a window assembler. keepMs and lengthMs are
// assumed to be normalized already (keep <= step <= length).
func NewAssembler(keepMs, lengthMs, sampleRate int) *Assembler {
	return &Assembler{
		keepSamples:   keepMs * sampleRate / 1000,
		lengthSamples: lengthMs * sampleRate / 1000,
		sampleRate:    sampleRate,
	}
}

// Next assembles the next inference window from freshly popped step
// samples. The amount of retained tail re-used is
// min(len(tail), max(0, keep+length-new)); the whole assembled window
// becomes the retained tail for the following iteration. On the very
// first window the tail is empty and the window is just the step.
func (a *Assembler) Next(step []float32) Window {
	take := a.keepSamples + a.lengthSamples - len(step)
	if take < 0 {
		take = 0
	}
	if take > len(a.tail) {
		take = len(a.tail)
	}

	samples := make([]float32, 0, take+len(step))
	samples = append(samples, a.tail[len(a.tail)-take:]...)
	samples = append(samples, step...)

	offset := (a.elapsed - take) * 1000 / a.sampleRate
	if offset < 0 {
		offset = 0
	}

	a.tail = samples
	a.elapsed += len(step)

	return Window{Samples: samples, OffsetMs: offset}
}

// Skip advances the elapsed-time accounting for step samples that were
// discarded without assembly (the speech gate dropping silence). The
// retained tail is left untouched.
func (a *Assembler) Skip(n int) {
	a.elapsed += n
}

// ElapsedMs returns the stream time consumed so far in milliseconds.
func (a *Assembler) ElapsedMs() int {
	return a.elapsed * 1000 / a.sampleRate
}
