package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/parser"
)

// maxTopN bounds match_cipher's candidate list.
const maxTopN = 10

// --- Input/Output types ---

// VoiceStatusInput takes no parameters.
type VoiceStatusInput struct{}

// StatusCheck is one readiness check.
type StatusCheck struct {
	Name    string `json:"name"`
	Pass    bool   `json:"pass"`
	Message string `json:"message"`
}

// VoiceStatusOutput reports whether the voice pipeline can run.
type VoiceStatusOutput struct {
	Ready    bool          `json:"ready"`
	Platform string        `json:"platform"`
	Checks   []StatusCheck `json:"checks"`
}

// MatchInput defines parameters for the match_cipher tool.
type MatchInput struct {
	Phrase string `json:"phrase" jsonschema:"spoken or typed phrase to match"`
	TopN   int    `json:"top_n,omitempty" jsonschema:"number of candidates to return (default 1)"`
}

// Candidate is one matched command.
type Candidate struct {
	Phrase    string   `json:"phrase"`
	Score     float64  `json:"score"`
	Method    string   `json:"method"`
	Tags      []string `json:"tags,omitempty"`
	Expansion string   `json:"expansion"`
}

// MatchOutput lists the candidates for a phrase.
type MatchOutput struct {
	Matched    bool        `json:"matched"`
	Input      string      `json:"input"`
	Normalized string      `json:"normalized"`
	Results    []Candidate `json:"results,omitempty"`
}

// ExpandInput defines parameters for the expand_cipher tool.
type ExpandInput struct {
	Phrase    string   `json:"phrase" jsonschema:"phrase naming the command"`
	Modifiers []string `json:"modifiers,omitempty" jsonschema:"modifier phrases to apply"`
}

// ExpandOutput is the instruction the assistant would receive.
type ExpandOutput struct {
	Phrase           string   `json:"phrase"`
	ModifiersApplied []string `json:"modifiers_applied"`
	Expansion        string   `json:"expansion"`
}

// ListCommandsInput defines parameters for the list_commands tool.
type ListCommandsInput struct {
	IncludeExpansions bool `json:"include_expansions,omitempty" jsonschema:"include each command's full expansion"`
}

// CommandEntry describes one grimoire command.
type CommandEntry struct {
	Phrase               string   `json:"phrase"`
	Aliases              []string `json:"aliases,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	Expansion            string   `json:"expansion,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	EscapeHatch          bool     `json:"escape_hatch,omitempty"`
}

// ListCommandsOutput is the full command list.
type ListCommandsOutput struct {
	Commands []CommandEntry `json:"commands"`
	Count    int            `json:"count"`
}

// ListGrimoiresInput takes no parameters.
type ListGrimoiresInput struct{}

// GrimoireEntry is one grimoire file or the active registry.
type GrimoireEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Location string `json:"location"`
	Active   bool   `json:"active,omitempty"`
}

// ListGrimoiresOutput describes the active registry and the files beside it.
type ListGrimoiresOutput struct {
	Active    string          `json:"active"`
	Version   uint64          `json:"version"`
	LoadedAt  string          `json:"loaded_at"`
	Commands  int             `json:"commands"`
	Modifiers int             `json:"modifiers"`
	Grimoires []GrimoireEntry `json:"grimoires"`
}

// AnalyzeInput defines parameters for the analyze_command tool.
type AnalyzeInput struct {
	Phrase string `json:"phrase" jsonschema:"phrase to analyze"`
}

// AnalyzeOutput is how a matched command would be routed.
type AnalyzeOutput struct {
	Phrase               string   `json:"phrase"`
	Score                float64  `json:"score"`
	Tags                 []string `json:"tags,omitempty"`
	Category             string   `json:"category"`
	PermissionTier       string   `json:"permission_tier"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Tools                []string `json:"tools,omitempty"`
	ExpansionPreview     string   `json:"expansion_preview"`
}

// --- Handlers ---

func (s *Server) handleVoiceStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input VoiceStatusInput) (*mcpsdk.CallToolResult, VoiceStatusOutput, error) {
	out := VoiceStatusOutput{Platform: runtime.GOOS + "/" + runtime.GOARCH}
	if s.status == nil {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	report := s.status(ctx)
	out.Ready = report.OK()
	out.Checks = make([]StatusCheck, len(report.Checks))
	for i, c := range report.Checks {
		out.Checks[i] = StatusCheck{Name: c.Name, Pass: c.Pass, Message: c.Message}
	}
	return nil, out, nil
}

func (s *Server) handleMatch(ctx context.Context, req *mcpsdk.CallToolRequest, input MatchInput) (*mcpsdk.CallToolResult, MatchOutput, error) {
	out := MatchOutput{Input: input.Phrase, Normalized: s.parser.Normalize(input.Phrase)}

	var results []parser.Result
	switch n := min(input.TopN, maxTopN); {
	case n <= 1:
		if res, ok := s.parser.Match(ctx, input.Phrase); ok {
			results = []parser.Result{res}
		}
	default:
		results = s.parser.MatchTopN(ctx, input.Phrase, n)
	}

	for _, r := range results {
		out.Results = append(out.Results, Candidate{
			Phrase:    r.Command.Phrase,
			Score:     r.Score,
			Method:    string(r.Method),
			Tags:      r.Command.Tags,
			Expansion: preview(r.Command.Expansion, expansionPreview),
		})
	}
	out.Matched = len(out.Results) > 0
	s.logger.Debug("mcp match", "input", input.Phrase, "candidates", len(out.Results))
	return nil, out, nil
}

func (s *Server) handleExpand(ctx context.Context, req *mcpsdk.CallToolRequest, input ExpandInput) (*mcpsdk.CallToolResult, ExpandOutput, error) {
	res, ok := s.parser.Match(ctx, input.Phrase)
	if !ok {
		return nil, ExpandOutput{}, fmt.Errorf("no command matches %q", input.Phrase)
	}

	var mods []grimoire.Modifier
	if len(input.Modifiers) > 0 {
		mods = s.parser.Extract(strings.Join(input.Modifiers, " "))
	}
	return nil, ExpandOutput{
		Phrase:           res.Command.Phrase,
		ModifiersApplied: parser.Effects(mods),
		Expansion:        parser.Expand(res.Command, mods),
	}, nil
}

func (s *Server) handleListCommands(ctx context.Context, req *mcpsdk.CallToolRequest, input ListCommandsInput) (*mcpsdk.CallToolResult, ListCommandsOutput, error) {
	g, err := s.store.Grimoire()
	if err != nil {
		return nil, ListCommandsOutput{}, err
	}

	entries := make([]CommandEntry, len(g.Commands))
	for i, c := range g.Commands {
		entries[i] = CommandEntry{
			Phrase:               c.Phrase,
			Aliases:              c.Aliases,
			Tags:                 c.Tags,
			RequiresConfirmation: c.Confirmation,
			EscapeHatch:          c.EscapeHatch,
		}
		if input.IncludeExpansions {
			entries[i].Expansion = c.Expansion
		}
	}
	return nil, ListCommandsOutput{Commands: entries, Count: len(entries)}, nil
}

func (s *Server) handleListGrimoires(ctx context.Context, req *mcpsdk.CallToolRequest, input ListGrimoiresInput) (*mcpsdk.CallToolResult, ListGrimoiresOutput, error) {
	snap := s.store.Snapshot()
	if snap == nil || snap.Grimoire == nil {
		return nil, ListGrimoiresOutput{}, grimoire.ErrNotLoaded
	}

	out := ListGrimoiresOutput{
		Active:    snap.Source,
		Version:   snap.Version,
		LoadedAt:  snap.LoadedAt.Format(time.RFC3339),
		Commands:  len(snap.Grimoire.Commands),
		Modifiers: len(snap.Grimoire.Modifiers),
		Grimoires: []GrimoireEntry{},
	}
	if snap.Source == grimoire.SourceName("") {
		out.Grimoires = append(out.Grimoires, GrimoireEntry{Name: snap.Source, Location: "built-in", Active: true})
	}

	seen := map[string]bool{}
	for _, dir := range s.dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			continue
		}
		slices.Sort(files)
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			if info, err := os.Stat(f); err != nil || !info.Mode().IsRegular() {
				continue
			}
			out.Grimoires = append(out.Grimoires, GrimoireEntry{
				Name:     strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)),
				Path:     f,
				Location: dir,
				Active:   sameFile(f, snap.Source),
			})
		}
	}
	return nil, out, nil
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcpsdk.CallToolRequest, input AnalyzeInput) (*mcpsdk.CallToolResult, AnalyzeOutput, error) {
	res, ok := s.parser.Match(ctx, input.Phrase)
	if !ok {
		return nil, AnalyzeOutput{}, fmt.Errorf("no command matches %q", input.Phrase)
	}
	d := s.router.Route(res.Command)
	return nil, AnalyzeOutput{
		Phrase:               res.Command.Phrase,
		Score:                res.Score,
		Tags:                 res.Command.Tags,
		Category:             string(d.Category),
		PermissionTier:       string(d.Tier),
		RequiresConfirmation: res.Command.Confirmation,
		Tools:                d.Profile.Tools,
		ExpansionPreview:     preview(res.Command.Expansion, 100),
	}, nil
}

// preview truncates s to n runes, marking the cut.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sameFile(a, b string) bool {
	if b == "" {
		return false
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
