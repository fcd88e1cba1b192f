package port

import "context"

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the caller-controlled part of a completion call. The
// client adds the model and its fixed system instruction.
type CompletionRequest struct {
	Messages    []Message
	Temperature *float64 // nil = client default
}

// Finish reasons reported at the end of a stream.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Completer issues one non-streaming completion request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	ModelName() string
}

// Streamer issues one streaming completion request, calling onDelta for each
// incremental piece of content, and returns the terminal finish reason.
type Streamer interface {
	Stream(ctx context.Context, req CompletionRequest, onDelta func(string)) (string, error)

	ModelName() string
}
