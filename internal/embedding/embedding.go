// Package embedding provides the vector providers behind semantic matching.
package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/semantic"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
	ProviderOllama = "ollama"
)

// API key environment variables, usually populated from .env.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvGoogleKey = "GOOGLE_API_KEY"
)

// New builds the provider named in cfg.
func New(ctx context.Context, cfg config.EmbeddingConfig) (semantic.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAI(os.Getenv(EnvOpenAIKey), cfg.Model)
	case ProviderGenAI:
		return NewGenAI(ctx, GenAIKey(), cfg.Model, cfg.TaskType)
	case ProviderOllama:
		return NewOllama(cfg.OllamaEndpoint, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// GenAIKey returns the Gemini key, preferring GEMINI_API_KEY.
func GenAIKey() string {
	if key := strings.TrimSpace(os.Getenv(EnvGeminiKey)); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(EnvGoogleKey))
}

func checkCount(provider string, want, got int) error {
	if want != got {
		return fmt.Errorf("%s returned %d embeddings for %d inputs", provider, got, want)
	}
	return nil
}

func single(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vectors[0], nil
}
