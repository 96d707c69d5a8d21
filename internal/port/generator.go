package port

import (
	"context"

	"lexrag/internal/domain"
)

// Fragment is one piece of a streamed answer. Err, when set, terminates
// the stream; the channel is closed after it.
type Fragment struct {
	Text string
	Err  error
}

// Generator produces a streamed natural-language answer from a system
// instruction and a conversation history. Cancelling ctx aborts the
// stream promptly.
type Generator interface {
	Stream(ctx context.Context, systemPrompt string, history []domain.Message) (<-chan Fragment, error)

	// ModelName returns the name of the generation model.
	ModelName() string
}
