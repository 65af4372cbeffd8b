package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/suzerain/internal/audio"
	"github.com/rbright/suzerain/internal/transcript"
)

// LiveOptions configures a Deepgram streaming session.
type LiveOptions struct {
	URL         string
	APIKey      string
	Model       string
	Language    string
	Endpointing time.Duration
	// MaxDuration bounds one utterance. Zero means 30 s.
	MaxDuration time.Duration
	// CloseWait bounds how long trailing results are awaited after the stream closes.
	CloseWait time.Duration
	// Vocabulary words are sent as boosted keywords on every dial.
	Vocabulary *Vocabulary
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
}

// Live streams PCM to Deepgram and returns once speech_final arrives.
type Live struct {
	opts LiveOptions
}

// NewLive validates opts.
func NewLive(opts LiveOptions) (*Live, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("Deepgram API key is required (set DEEPGRAM_API_KEY)")
	}
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = "wss://api.deepgram.com/v1/listen"
	}
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Endpointing <= 0 {
		opts.Endpointing = 300 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	if opts.CloseWait <= 0 {
		opts.CloseWait = 2 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Live{opts: opts}, nil
}

// Endpoint returns the dial URL with recognition parameters.
func (l *Live) Endpoint() (string, error) {
	u, err := url.Parse(l.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse live url: %w", err)
	}
	q := u.Query()
	q.Set("model", l.opts.Model)
	if l.opts.Language != "" {
		q.Set("language", l.opts.Language)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.FormatInt(l.opts.Endpointing.Milliseconds(), 10))
	for _, word := range l.opts.Vocabulary.Words() {
		q.Add("keywords", word+":"+keywordBoost)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type liveResult struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r liveResult) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return r.Channel.Alternatives[0].Transcript
}

// Listen forwards chunks until the provider reports end of speech, MaxDuration
// elapses, chunks closes, or ctx ends. It returns the assembled final text.
func (l *Live) Listen(ctx context.Context, chunks <-chan []byte) (string, error) {
	endpoint, err := l.Endpoint()
	if err != nil {
		return "", err
	}
	header := http.Header{}
	header.Set("Authorization", "Token "+l.opts.APIKey)

	conn, resp, err := l.opts.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return "", Classify(ProviderDeepgram, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))})
		}
		return "", Classify(ProviderDeepgram, err)
	}
	defer conn.Close()

	results := make(chan liveResult, 16)
	readErr := make(chan error, 1)
	go func() {
		defer close(results)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var r liveResult
			if json.Unmarshal(msg, &r) != nil || r.Type != "Results" {
				continue
			}
			results <- r
		}
	}()

	var b transcript.Builder
	maxTimer := time.NewTimer(l.opts.MaxDuration)
	defer maxTimer.Stop()

	finish := func() (string, error) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		wait := time.NewTimer(l.opts.CloseWait)
		defer wait.Stop()
		for {
			select {
			case r, ok := <-results:
				if !ok {
					return b.Text(), nil
				}
				b.Add(r.transcript(), r.IsFinal)
			case <-wait.C:
				_ = conn.Close()
				for range results {
				}
				return b.Text(), nil
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			for range results {
			}
			return b.Text(), ctx.Err()
		case <-maxTimer.C:
			l.opts.Logger.Debug("live transcription hit max duration", "max_ms", l.opts.MaxDuration.Milliseconds())
			return finish()
		case chunk, ok := <-chunks:
			if !ok {
				return finish()
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				_ = conn.Close()
				for range results {
				}
				return b.Text(), Classify(ProviderDeepgram, fmt.Errorf("send audio: %w", err))
			}
		case r, ok := <-results:
			if !ok {
				err := <-readErr
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return b.Text(), nil
				}
				return b.Text(), Classify(ProviderDeepgram, err)
			}
			b.Add(r.transcript(), r.IsFinal)
			if r.SpeechFinal && b.Final() {
				return finish()
			}
		}
	}
}
