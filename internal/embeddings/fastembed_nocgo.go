//go:build !cgo

package embeddings

import "context"

// FastEmbedAvailable reports whether this binary can load fastembed models.
const FastEmbedAvailable = false

// FastEmbedConfig holds configuration for the FastEmbed encoder.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedEncoder is a stub for non-CGO builds.
type FastEmbedEncoder struct{}

// NewFastEmbedEncoder returns an error when CGO is not available.
func NewFastEmbedEncoder(_ FastEmbedConfig) (*FastEmbedEncoder, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Encode returns an error when CGO is not available.
func (p *FastEmbedEncoder) Encode(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Dimension returns 0 when CGO is not available.
func (p *FastEmbedEncoder) Dimension() int {
	return 0
}

// Close is a no-op when CGO is not available.
func (p *FastEmbedEncoder) Close() error {
	return nil
}
