package embeddings

import "errors"

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownModel indicates a model name missing from the catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInputRejected indicates the backend refused an input as a client
	// error, such as a text over its length limit.
	ErrInputRejected = errors.New("input rejected by embedding backend")

	// ErrModelNotLoaded indicates use of an encoder after Close.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires CGO).
	ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the tei provider instead)")
)
