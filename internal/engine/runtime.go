package engine

import (
	"context"
	"image"
)

// Runtime abstracts the inference backend used by the Bridge. Concrete
// implementations (e.g., llama.cpp) should satisfy this interface.
type Runtime interface {
	// Load reads the model at path and returns a live Session.
	Load(path string, opts LoadOptions) (Session, error)
}

// Session represents one loaded model instance.
type Session interface {
	// Predict runs a single generation. img is nil for text-only prompts.
	// Implementations must return when the context is canceled.
	Predict(ctx context.Context, prompt string, img image.Image, opts GenOptions) (string, error)
	// Close releases the model and any backing resources.
	Close() error
}

// LoadOptions captures model initialization parameters.
type LoadOptions struct {
	MaxTokens   int
	MaxImages   int
	ContextSize int
	Threads     int
}

// GenOptions captures per-request generation parameters.
type GenOptions struct {
	MaxTokens   int
	Temperature float32
	TopK        int
	TopP        float32
}
