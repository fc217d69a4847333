package server

// resultMessage is the wire format for transcription results. Each
// message is serialized as one JSON object; the TCP transport writes
// them newline-delimited, the WebSocket transport as text frames.
type resultMessage struct {
	Type string `json:"type"` // "partial" or "final"
	Text string `json:"text"`
}
