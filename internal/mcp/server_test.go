package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rbright/suzerain/internal/doctor"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/parser"
)

const testGrimoire = `
commands:
  - phrase: "the evening redness in the west"
    aliases: ["evening redness"]
    tags: [deploy, production]
    expansion: "Deploy to production."
    confirmation: true
  - phrase: "the judge smiled"
    tags: [testing]
    expansion: "Run the tests."
  - phrase: "they rode on"
    expansion: "Continue."
  - phrase: "stop"
    expansion: "Stop."
    escape_hatch: true
modifiers:
  - phrase: "and the judge watched"
    effect: dry_run
    append: "Describe what you would do without doing it."
  - phrase: "under the stars"
    effect: verbose
    append: "Explain each step."
`

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	g, err := grimoire.Parse([]byte(testGrimoire))
	require.NoError(t, err)
	store := grimoire.NewStore(g, "test")
	cfg.Store = store
	cfg.Dispatcher = parser.NewDispatcher(store, parser.Options{}, nil, nil)
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestMatchCipher(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := context.Background()

	result, out, err := s.handleMatch(ctx, &mcpsdk.CallToolRequest{}, MatchInput{Phrase: "the judge smiled"})
	require.NoError(t, err)
	require.Nil(t, result)
	require.True(t, out.Matched)
	require.Len(t, out.Results, 1)
	require.Equal(t, "the judge smiled", out.Results[0].Phrase)
	require.Equal(t, "fuzzy", out.Results[0].Method)
	require.InDelta(t, 100, out.Results[0].Score, 0.001)
	require.Equal(t, []string{"testing"}, out.Results[0].Tags)

	_, out, err = s.handleMatch(ctx, &mcpsdk.CallToolRequest{}, MatchInput{Phrase: "Stop!"})
	require.NoError(t, err)
	require.Equal(t, "escape", out.Results[0].Method)

	_, out, err = s.handleMatch(ctx, &mcpsdk.CallToolRequest{}, MatchInput{Phrase: "compile the kernel"})
	require.NoError(t, err)
	require.False(t, out.Matched)
	require.Empty(t, out.Results)
	require.Equal(t, "compile the kernel", out.Normalized)
}

func TestMatchCipherTopN(t *testing.T) {
	s := newTestServer(t, Config{})

	_, out, err := s.handleMatch(context.Background(), &mcpsdk.CallToolRequest{}, MatchInput{Phrase: "the judge", TopN: 3})
	require.NoError(t, err)
	require.True(t, out.Matched)
	require.LessOrEqual(t, len(out.Results), 3)
	require.Equal(t, "the judge smiled", out.Results[0].Phrase)
	for i := 1; i < len(out.Results); i++ {
		require.GreaterOrEqual(t, out.Results[i-1].Score, out.Results[i].Score)
	}
}

func TestExpandCipherAppliesModifiers(t *testing.T) {
	s := newTestServer(t, Config{})

	_, out, err := s.handleExpand(context.Background(), &mcpsdk.CallToolRequest{}, ExpandInput{
		Phrase:    "the judge smiled",
		Modifiers: []string{"and the judge watched", "under the stars"},
	})
	require.NoError(t, err)
	require.Equal(t, "the judge smiled", out.Phrase)
	require.Equal(t, []string{"dry_run", "verbose"}, out.ModifiersApplied)
	require.Equal(t, "Run the tests.\n\nDescribe what you would do without doing it.\n\nExplain each step.", out.Expansion)

	_, out, err = s.handleExpand(context.Background(), &mcpsdk.CallToolRequest{}, ExpandInput{Phrase: "they rode on"})
	require.NoError(t, err)
	require.Empty(t, out.ModifiersApplied)
	require.Equal(t, "Continue.", out.Expansion)
}

func TestExpandCipherNoMatch(t *testing.T) {
	s := newTestServer(t, Config{})
	_, _, err := s.handleExpand(context.Background(), &mcpsdk.CallToolRequest{}, ExpandInput{Phrase: "compile the kernel"})
	require.ErrorContains(t, err, "no command matches")
}

func TestListCommands(t *testing.T) {
	s := newTestServer(t, Config{})

	_, out, err := s.handleListCommands(context.Background(), &mcpsdk.CallToolRequest{}, ListCommandsInput{})
	require.NoError(t, err)
	require.Equal(t, 4, out.Count)
	require.Len(t, out.Commands, 4)
	require.Equal(t, "the evening redness in the west", out.Commands[0].Phrase)
	require.Equal(t, []string{"evening redness"}, out.Commands[0].Aliases)
	require.True(t, out.Commands[0].RequiresConfirmation)
	require.Empty(t, out.Commands[0].Expansion)
	require.True(t, out.Commands[3].EscapeHatch)

	_, out, err = s.handleListCommands(context.Background(), &mcpsdk.CallToolRequest{}, ListCommandsInput{IncludeExpansions: true})
	require.NoError(t, err)
	require.Equal(t, "Deploy to production.", out.Commands[0].Expansion)
}

func TestListGrimoiresReportsActiveFile(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "blood.yaml")
	require.NoError(t, os.WriteFile(active, []byte(testGrimoire), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meridian.yaml"), []byte(testGrimoire), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	s := newTestServer(t, Config{GrimoireDirs: []string{dir, dir}})
	_, _, err := s.store.ReloadFile(active)
	require.NoError(t, err)

	_, out, err := s.handleListGrimoires(context.Background(), &mcpsdk.CallToolRequest{}, ListGrimoiresInput{})
	require.NoError(t, err)
	require.Equal(t, active, out.Active)
	require.Equal(t, 4, out.Commands)
	require.Equal(t, 2, out.Modifiers)
	require.Equal(t, []GrimoireEntry{
		{Name: "blood", Path: active, Location: dir, Active: true},
		{Name: "meridian", Path: filepath.Join(dir, "meridian.yaml"), Location: dir},
	}, out.Grimoires)
}

func TestListGrimoiresBuiltIn(t *testing.T) {
	g, err := grimoire.Default()
	require.NoError(t, err)
	store := grimoire.NewStore(g, grimoire.SourceName(""))
	s, err := New(Config{Store: store, Dispatcher: parser.NewDispatcher(store, parser.Options{}, nil, nil)})
	require.NoError(t, err)

	_, out, err := s.handleListGrimoires(context.Background(), &mcpsdk.CallToolRequest{}, ListGrimoiresInput{})
	require.NoError(t, err)
	require.Equal(t, "built-in", out.Active)
	require.Equal(t, []GrimoireEntry{{Name: "built-in", Location: "built-in", Active: true}}, out.Grimoires)
}

func TestAnalyzeCommand(t *testing.T) {
	s := newTestServer(t, Config{})

	_, out, err := s.handleAnalyze(context.Background(), &mcpsdk.CallToolRequest{}, AnalyzeInput{Phrase: "evening redness"})
	require.NoError(t, err)
	require.Equal(t, "the evening redness in the west", out.Phrase)
	require.Equal(t, "deployer", out.Category)
	require.Equal(t, "dangerous", out.PermissionTier)
	require.True(t, out.RequiresConfirmation)
	require.Equal(t, "Deploy to production.", out.ExpansionPreview)

	_, out, err = s.handleAnalyze(context.Background(), &mcpsdk.CallToolRequest{}, AnalyzeInput{Phrase: "the judge smiled"})
	require.NoError(t, err)
	require.Equal(t, "test-runner", out.Category)
	require.Equal(t, "safe", out.PermissionTier)
	require.Contains(t, out.Tools, "Bash")

	_, _, err = s.handleAnalyze(context.Background(), &mcpsdk.CallToolRequest{}, AnalyzeInput{Phrase: "compile the kernel"})
	require.Error(t, err)
}

func TestVoiceStatus(t *testing.T) {
	s := newTestServer(t, Config{Status: func(context.Context) doctor.Report {
		return doctor.Report{Checks: []doctor.Check{
			{Name: "grimoire", Pass: true, Message: "4 commands"},
			{Name: "DEEPGRAM_API_KEY", Pass: false, Message: "not set"},
		}}
	}})

	result, out, err := s.handleVoiceStatus(context.Background(), &mcpsdk.CallToolRequest{}, VoiceStatusInput{})
	require.NoError(t, err)
	require.Nil(t, result)
	require.False(t, out.Ready)
	require.NotEmpty(t, out.Platform)
	require.Equal(t, []StatusCheck{
		{Name: "grimoire", Pass: true, Message: "4 commands"},
		{Name: "DEEPGRAM_API_KEY", Pass: false, Message: "not set"},
	}, out.Checks)

	bare := newTestServer(t, Config{})
	result, _, err = bare.handleVoiceStatus(context.Background(), &mcpsdk.CallToolRequest{}, VoiceStatusInput{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestPreviewTruncatesByRune(t *testing.T) {
	require.Equal(t, "abc", preview("abc", 3))
	require.Equal(t, "ab...", preview("abc", 2))
	require.Equal(t, "ün...", preview("ünï", 2))
}
