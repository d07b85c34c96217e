// Package llm adapts hosted and local model providers to the embedding and
// generation capabilities used by the services package.
package llm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github/itish2003/rentalqa/config"
	"github/itish2003/rentalqa/services"
)

// Model is implemented by every provider: each one both embeds and generates.
type Model interface {
	services.Embedder
	services.Generator
}

var (
	_ Model = (*OpenAI)(nil)
	_ Model = (*Gemini)(nil)
	_ Model = (*Ollama)(nil)
)

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.ModelConfig) (Model, error) {
	logrus.WithFields(logrus.Fields{
		"component": "llm",
		"provider":  cfg.Provider,
		"model":     cfg.Model,
	}).Info("creating model client")

	switch cfg.Provider {
	case config.ProviderOpenAI:
		m, err := NewOpenAI(cfg.APIKey(), cfg.BaseURL, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderGemini:
		m, err := NewGemini(ctx, cfg.APIKey(), cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderOllama:
		m, err := NewOllama(cfg.BaseURL, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// NewEmbedder builds the embedder described by cfg.
func NewEmbedder(ctx context.Context, cfg config.ModelConfig) (services.Embedder, error) {
	m, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return m, nil
}

// NewGenerator builds the generator described by cfg.
func NewGenerator(ctx context.Context, cfg config.ModelConfig) (services.Generator, error) {
	m, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	return m, nil
}
