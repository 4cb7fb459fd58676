//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedAvailable reports whether this binary can load fastembed models.
const FastEmbedAvailable = true

// FastEmbedConfig holds configuration for the FastEmbed encoder.
type FastEmbedConfig struct {
	// Model is a catalog model name, e.g. all-MiniLM-L6-v2.
	Model string

	// CacheDir is the directory model files are downloaded to.
	// Defaults to ./local_cache
	CacheDir string

	// MaxLength is the maximum input sequence length.
	// Defaults to 512.
	MaxLength int
}

// FastEmbedEncoder generates embeddings with a local ONNX model.
type FastEmbedEncoder struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex
}

// fastembedModels maps catalog IDs to fastembed model constants.
var fastembedModels = map[string]fastembed.EmbeddingModel{
	"fast-all-MiniLM-L6-v2":  fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5": fastembed.BGESmallENV15,
	"fast-bge-small-en":      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":  fastembed.BGEBaseENV15,
	"fast-bge-base-en":       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5": fastembed.BGESmallZH,
}

// NewFastEmbedEncoder loads a model, downloading it into CacheDir on first use.
func NewFastEmbedEncoder(cfg FastEmbedConfig) (*FastEmbedEncoder, error) {
	info, ok := LookupModel(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %q (run `embedgate models` for the supported list)", ErrUnknownModel, cfg.Model)
	}
	model, ok := fastembedModels[info.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no fastembed mapping", ErrUnknownModel, cfg.Model)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "local_cache"
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	// Disable progress bar for server use
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbedEncoder{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: info.Dimension,
	}, nil
}

// Encode generates the embedding for one text.
// Plain Embed is used so no query or passage prefix is added.
func (p *FastEmbedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.model == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, p.modelName)
	}

	vectors, err := p.model.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vectors))
	}

	return vectors[0], nil
}

// Dimension returns the embedding dimension for the loaded model.
func (p *FastEmbedEncoder) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session. Encode fails with ErrModelNotLoaded afterwards.
func (p *FastEmbedEncoder) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
