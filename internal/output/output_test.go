package output

import (
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rbright/suzerain/internal/stream"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(buf *bytes.Buffer) string { return ansi.ReplaceAllString(buf.String(), "") }

func TestConsoleRendersStreamPlainWhenRedirected(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Handle(stream.Event{Kind: stream.KindSystem, Text: "init", SessionID: "s-1"})
	c.Handle(stream.Event{Kind: stream.KindText, Text: "Running ", Delta: true})
	c.Handle(stream.Event{Kind: stream.KindText, Text: "tests", Delta: true})
	c.Handle(stream.Event{Kind: stream.KindToolUse, Tool: "Bash"})
	c.Handle(stream.Event{Kind: stream.KindThinking, Text: "hidden thoughts"})
	c.Handle(stream.Event{Kind: stream.KindRaw, Text: "warning: stderr"})
	c.Handle(stream.Event{Kind: stream.KindResult, Text: "all green"})
	c.Handle(stream.Event{Kind: stream.KindError, Text: "overloaded"})

	require.Equal(t, strings.Join([]string{
		"session s-1",
		"Running tests",
		"› Bash",
		"warning: stderr",
		"all green",
		"error: overloaded",
		"",
	}, "\n"), plain(&buf))
}

func TestConsoleSkipsResultThatRepeatsText(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Handle(stream.Event{Kind: stream.KindText, Text: "Done."})
	c.Handle(stream.Event{Kind: stream.KindResult, Text: "Done."})
	require.Equal(t, "Done.\n", plain(&buf))
}

func TestConsoleStatusLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Heard("the judge smiled", "the judge smiled", 100, "fuzzy")
	c.Preview("Run the tests.", []string{"claude", "-p", "Run the tests."})
	c.Quiet(31 * time.Second)
	c.Finished("completed", 0, 1500*time.Millisecond, 2, 0)
	c.Finished("failed", 1, 2*time.Second, 0, 3)

	out := plain(&buf)
	require.Contains(t, out, "▸ the judge smiled (fuzzy 100) heard: the judge smiled")
	require.Contains(t, out, "preview, not executed\nRun the tests.\n$ claude -p 'Run the tests.'")
	require.Contains(t, out, "no output for 31s")
	require.Contains(t, out, "completed (exit 0, 1.5s, 2 tool uses)\n")
	require.Contains(t, out, "failed (exit 1, 2s, 0 tool uses, 3 errors)")
}

func TestQuoteArgv(t *testing.T) {
	require.Equal(t, `claude -p 'it'\''s' ''`, quoteArgv([]string{"claude", "-p", "it's", ""}))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: " YES \n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}
	for _, tc := range tests {
		var out bytes.Buffer
		p := NewScriptedPrompter(strings.NewReader(tc.input), &out)
		got, err := p.Confirm(context.Background(), `Execute "x"?`)
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.want, got, tc.input)
		require.Equal(t, `Execute "x"? [y/N] `, out.String())
	}
}

func TestConfirmDeclinesWithoutTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("y\n")
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	p := NewPrompter(f, &out)
	require.False(t, p.Interactive())
	ok, err := p.Confirm(context.Background(), "go?")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, out.String())

	_, _, err = p.Choose(context.Background(), "pick", []string{"a"})
	require.ErrorIs(t, err, ErrNotInteractive)
}

func TestChoose(t *testing.T) {
	var out bytes.Buffer
	p := NewScriptedPrompter(strings.NewReader("7\nabc\n2\n"), &out)

	idx, ok, err := p.Choose(context.Background(), "Which did you mean?", []string{"deploy server", "deploy database"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.Contains(t, out.String(), "  1) deploy server\n  2) deploy database\n")
	require.Contains(t, out.String(), `"7" is not a choice`)

	p = NewScriptedPrompter(strings.NewReader("0\n"), &out)
	_, ok, err = p.Choose(context.Background(), "?", []string{"a", "b"})
	require.NoError(t, err)
	require.False(t, ok)

	p = NewScriptedPrompter(strings.NewReader(""), &out)
	_, ok, err = p.Choose(context.Background(), "?", []string{"a"})
	require.NoError(t, err)
	require.False(t, ok)
}
