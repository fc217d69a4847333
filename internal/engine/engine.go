package engine

// Segment represents one timed piece of transcribed text.
type Segment struct {
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Transcriber converts PCM samples into text segments. Implementations
// are expected to poll the abort flag during long decodes and return
// early with whatever they have when it is set.
type Transcriber interface {
	// Transcribe decodes the given mono samples at the given rate.
	Transcribe(samples []float32, sampleRate int, abort *AbortFlag) ([]Segment, error)
	// Close releases underlying resources.
	Close() error
}

// Warmer is implemented by backends that benefit from a throwaway
// decode at startup, so the first real session does not pay model
// initialization latency.
type Warmer interface {
	Warm() error
}
