package ports

import (
	"context"
	"encoding/json"
	"errors"
)

// AI gateway errors
var (
	ErrMalformedResponse = errors.New("malformed model response")
	ErrAIUnavailable     = errors.New("generative model is not configured")
)

// StructuredRequest asks the model for JSON shaped by Schema.
type StructuredRequest struct {
	Name   string
	Prompt string
	Schema json.Marshaler
}

// AIGateway wraps the hosted generative model.
type AIGateway interface {
	// GenerateStructured decodes the model's JSON answer into out. An empty
	// answer leaves out untouched and is not an error.
	GenerateStructured(ctx context.Context, req StructuredRequest, out any) error
	GenerateText(ctx context.Context, prompt string) (string, error)
	OpenChatSession(systemInstruction string) ChatSession
}

// ChatSession is a persistent conversation with append-only turns.
type ChatSession interface {
	SendMessageStream(ctx context.Context, text string) (ChatStream, error)
}

// ChatStream yields the text fragments of one assistant turn in order.
// Recv returns io.EOF once the turn is complete.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}
