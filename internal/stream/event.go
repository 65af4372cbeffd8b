// Package stream decodes the assistant's line-delimited JSON output into events.
// Tool payloads are carried through untouched; nothing here interprets them.
package stream

import (
	"encoding/json"
	"strings"
)

// Kind classifies an event.
type Kind string

const (
	KindText     Kind = "text"
	KindThinking Kind = "thinking"
	KindToolUse  Kind = "tool_use"
	KindResult   Kind = "result"
	KindSystem   Kind = "system"
	KindError    Kind = "error"
	KindRaw      Kind = "raw"
)

// Event is one decoded output record.
type Event struct {
	Kind      Kind
	Text      string
	Tool      string
	ToolInput json.RawMessage
	SessionID string
	// Delta marks incremental text from content_block_delta records.
	Delta      bool
	IsError    bool
	CostUSD    float64
	DurationMS int64
}

// Handler receives events in stream order. Implementations must not block for long;
// the supervisor's read loop runs them inline.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// Handle calls f.
func (f HandlerFunc) Handle(ev Event) { f(ev) }

// Discard drops every event.
var Discard Handler = HandlerFunc(func(Event) {})

type record struct {
	Type           string          `json:"type"`
	Subtype        string          `json:"subtype"`
	SessionID      string          `json:"session_id"`
	ConversationID string          `json:"conversation_id"`
	Message        *message        `json:"message"`
	Delta          *delta          `json:"delta"`
	Name           string          `json:"name"`
	Input          json.RawMessage `json:"input"`
	Result         string          `json:"result"`
	IsError        bool            `json:"is_error"`
	TotalCostUSD   float64         `json:"total_cost_usd"`
	DurationMS     int64           `json:"duration_ms"`
	Error          json.RawMessage `json:"error"`
}

type message struct {
	Content []block `json:"content"`
}

type block struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

type delta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Parse decodes one output line. Lines that are not JSON objects come back as a single
// raw event; blank lines and unknown record types yield nothing.
func Parse(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var rec record
	if !strings.HasPrefix(line, "{") || json.Unmarshal([]byte(line), &rec) != nil {
		return []Event{{Kind: KindRaw, Text: line}}
	}

	session := rec.SessionID
	if session == "" {
		session = rec.ConversationID
	}

	switch rec.Type {
	case "assistant":
		if rec.Message == nil {
			return nil
		}
		out := make([]Event, 0, len(rec.Message.Content))
		for _, b := range rec.Message.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					out = append(out, Event{Kind: KindText, Text: b.Text, SessionID: session})
				}
			case "thinking":
				if b.Thinking != "" {
					out = append(out, Event{Kind: KindThinking, Text: b.Thinking, SessionID: session})
				}
			case "tool_use":
				out = append(out, Event{Kind: KindToolUse, Tool: b.Name, ToolInput: b.Input, SessionID: session})
			}
		}
		return out
	case "content_block_delta":
		if rec.Delta == nil || rec.Delta.Text == "" {
			return nil
		}
		return []Event{{Kind: KindText, Text: rec.Delta.Text, Delta: true, SessionID: session}}
	case "tool_use":
		name := rec.Name
		if name == "" {
			name = "unknown"
		}
		return []Event{{Kind: KindToolUse, Tool: name, ToolInput: rec.Input, SessionID: session}}
	case "result":
		return []Event{{
			Kind:       KindResult,
			Text:       rec.Result,
			SessionID:  session,
			IsError:    rec.IsError,
			CostUSD:    rec.TotalCostUSD,
			DurationMS: rec.DurationMS,
		}}
	case "system":
		return []Event{{Kind: KindSystem, Text: rec.Subtype, SessionID: session}}
	case "error":
		return []Event{{Kind: KindError, Text: errorText(rec.Error, line), SessionID: session, IsError: true}}
	default:
		return nil
	}
}

func errorText(raw json.RawMessage, line string) string {
	if len(raw) == 0 {
		return line
	}
	var body errorBody
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}
	return string(raw)
}
