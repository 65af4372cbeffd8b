package transcribe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client   openai.Client
	model    string
	language string
	timeout  time.Duration
	vocab    *Vocabulary
}

// NewWhisper creates a batch provider. model defaults to whisper-1. vocab may be nil;
// its words become the transcription prompt.
func NewWhisper(apiKey, model, language string, timeout time.Duration, vocab *Vocabulary, opts ...option.RequestOption) (*Whisper, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OpenAI API key is required (set OPENAI_API_KEY)")
	}
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &Whisper{
		client:   openai.NewClient(opts...),
		model:    model,
		language: strings.TrimSpace(language),
		timeout:  timeout,
		vocab:    vocab,
	}, nil
}

// Transcribe sends wav and returns the trimmed text. Errors are classified Failures.
func (w *Whisper) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}
	if words := w.vocab.Words(); len(words) > 0 {
		params.Prompt = openai.String(strings.Join(words, ", "))
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", Classify(ProviderOpenAI, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
