package llm

// StreamChunk is one incremental piece of a completion. A stream ends with
// exactly one chunk whose Done field is true; its Content is empty.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}
