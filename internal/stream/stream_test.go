package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Event
	}{
		{name: "blank", line: "   ", want: nil},
		{name: "raw text", line: "Error: not logged in", want: []Event{{Kind: KindRaw, Text: "Error: not logged in"}}},
		{name: "broken json", line: `{"type":`, want: []Event{{Kind: KindRaw, Text: `{"type":`}}},
		{name: "system init", line: `{"type":"system","subtype":"init","session_id":"abc"}`, want: []Event{{Kind: KindSystem, Text: "init", SessionID: "abc"}}},
		{name: "delta", line: `{"type":"content_block_delta","delta":{"type":"text_delta","text":"he"}}`, want: []Event{{Kind: KindText, Text: "he", Delta: true}}},
		{name: "empty delta", line: `{"type":"content_block_delta","delta":{"type":"text_delta","text":""}}`, want: nil},
		{name: "result", line: `{"type":"result","subtype":"success","result":"done","session_id":"s1","total_cost_usd":0.25,"duration_ms":1200}`, want: []Event{{Kind: KindResult, Text: "done", SessionID: "s1", CostUSD: 0.25, DurationMS: 1200}}},
		{name: "conversation id fallback", line: `{"type":"result","result":"ok","conversation_id":"c9"}`, want: []Event{{Kind: KindResult, Text: "ok", SessionID: "c9"}}},
		{name: "error object", line: `{"type":"error","error":{"message":"overloaded"}}`, want: []Event{{Kind: KindError, Text: "overloaded", IsError: true}}},
		{name: "error string", line: `{"type":"error","error":"boom"}`, want: []Event{{Kind: KindError, Text: "boom", IsError: true}}},
		{name: "unknown type", line: `{"type":"ping"}`, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Parse(tc.line))
		})
	}
}

func TestParseAssistantBlocks(t *testing.T) {
	line := `{"type":"assistant","session_id":"s2","message":{"content":[` +
		`{"type":"thinking","thinking":"hmm"},` +
		`{"type":"text","text":"Running tests."},` +
		`{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}]}}`

	events := Parse(line)
	require.Len(t, events, 3)
	require.Equal(t, KindThinking, events[0].Kind)
	require.Equal(t, "hmm", events[0].Text)
	require.Equal(t, KindText, events[1].Kind)
	require.Equal(t, "Running tests.", events[1].Text)
	require.Equal(t, KindToolUse, events[2].Kind)
	require.Equal(t, "Bash", events[2].Tool)
	require.JSONEq(t, `{"command":"go test ./..."}`, string(events[2].ToolInput))
	for _, ev := range events {
		require.Equal(t, "s2", ev.SessionID)
	}
}

func TestParseStandaloneToolUse(t *testing.T) {
	events := Parse(`{"type":"tool_use","input":{}}`)
	require.Len(t, events, 1)
	require.Equal(t, "unknown", events[0].Tool)
}

func TestTallyCountsAndForwards(t *testing.T) {
	var seen []Kind
	tally := NewTally(HandlerFunc(func(ev Event) { seen = append(seen, ev.Kind) }))

	lines := []string{
		`{"type":"system","subtype":"init","session_id":"first"}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{}},{"type":"tool_use","name":"Grep","input":{}}]}}`,
		`{"type":"error","error":{"message":"retrying"}}`,
		`{"type":"result","result":"all green","session_id":"final"}`,
		`plain line`,
	}
	for _, line := range lines {
		for _, ev := range Parse(line) {
			tally.Handle(ev)
		}
	}

	require.Equal(t, "final", tally.SessionID())
	require.Equal(t, 2, tally.ToolUses())
	require.Equal(t, 1, tally.Errors())
	require.Equal(t, "all green", tally.Result())
	require.Equal(t, []Kind{KindSystem, KindToolUse, KindToolUse, KindError, KindResult, KindRaw}, seen)
}

func TestTallyNilHandler(t *testing.T) {
	tally := NewTally(nil)
	tally.Handle(Event{Kind: KindToolUse})
	require.Equal(t, 1, tally.ToolUses())
}
