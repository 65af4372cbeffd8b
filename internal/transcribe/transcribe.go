// Package transcribe adapts speech-to-text providers: batch Whisper, live Deepgram
// streaming, and gRPC readiness checks for self-hosted backends.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/suzerain/internal/config"
)

// Provider names and their key variables.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepgram = "deepgram"

	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
)

// Batch transcribes one complete WAV utterance.
type Batch interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Streaming transcribes PCM chunks until the speaker stops.
type Streaming interface {
	Listen(ctx context.Context, chunks <-chan []byte) (string, error)
}

// NewBatch builds the configured batch provider. vocab may be nil.
func NewBatch(cfg config.TranscriptionConfig, vocab *Vocabulary) (Batch, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewWhisper(os.Getenv(EnvOpenAIKey), cfg.Model, cfg.Language, cfg.Timeout, vocab)
	default:
		return nil, fmt.Errorf("unknown batch transcription provider %q", cfg.Provider)
	}
}

// NewStreaming builds the live provider. vocab may be nil.
func NewStreaming(cfg config.TranscriptionConfig, maxDuration time.Duration, vocab *Vocabulary) (Streaming, error) {
	return NewLive(LiveOptions{
		URL:         cfg.LiveURL,
		APIKey:      os.Getenv(EnvDeepgramKey),
		Model:       cfg.LiveModel,
		Language:    cfg.Language,
		Endpointing: cfg.Endpointing,
		MaxDuration: maxDuration,
		Vocabulary:  vocab,
	})
}
