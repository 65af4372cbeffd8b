package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/rbright/suzerain/internal/audio"
	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/history"
	"github.com/rbright/suzerain/internal/parser"
	"github.com/rbright/suzerain/internal/session"
)

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tSTATE\tAVAILABLE\tMUTED")
	for _, d := range devices {
		mark := ""
		switch {
		case d.Default:
			mark = "*"
		case d.Monitor:
			mark = "m"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
	}
	_ = tw.Flush()
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandValidate(loaded config.Loaded) int {
	path := loaded.Config.Grimoire.Path
	g, issues, err := grimoire.Open(path)
	for _, issue := range issues {
		fmt.Fprintln(r.Stdout, issue.String())
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "config %s: ok\n", loaded.Path)
	fmt.Fprintf(r.Stdout, "grimoire %s: ok (%d commands, %d modifiers)\n", grimoire.SourceName(path), len(g.Commands), len(g.Modifiers))
	return 0
}

// commandSource adapts grimoire commands to fuzzy.Source. Each entry searches the
// phrase, aliases, and tags together.
type commandSource []grimoire.Command

func (s commandSource) String(i int) string {
	c := s[i]
	parts := append([]string{c.Phrase}, c.Aliases...)
	parts = append(parts, c.Tags...)
	return strings.Join(parts, " ")
}

func (s commandSource) Len() int { return len(s) }

func (r Runner) commandCommands(cfg config.Config, filter string) int {
	g, _, err := grimoire.Open(cfg.Grimoire.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	cmds := g.Commands
	if filter = strings.TrimSpace(filter); filter != "" {
		matches := fuzzy.FindFrom(filter, commandSource(cmds))
		cmds = make([]grimoire.Command, 0, len(matches))
		for _, m := range matches {
			cmds = append(cmds, g.Commands[m.Index])
		}
	}
	if len(cmds) == 0 {
		fmt.Fprintln(r.Stdout, "no commands")
		return 0
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range cmds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Phrase, strings.Join(c.Tags, ","), commandFlags(c))
	}
	_ = tw.Flush()
	return 0
}

func commandFlags(c grimoire.Command) string {
	var flags []string
	if c.Confirmation {
		flags = append(flags, "confirm")
	}
	if c.EscapeHatch {
		flags = append(flags, "escape")
	}
	if c.UseContinuation {
		flags = append(flags, "continue")
	}
	return strings.Join(flags, ",")
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, limit int) int {
	path := cfg.History.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no dispatches recorded")
		return 0
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		phrase := e.Phrase
		if phrase == "" {
			phrase = e.Spoken
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.At.Format(time.DateTime), humanize.Time(e.At), e.State, e.ExitCode, e.Duration.Round(100*time.Millisecond), phrase)
	}
	_ = tw.Flush()
	return 0
}

func (r Runner) commandMatch(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	m, _, err := newMatching(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	out := m.dispatcher.Resolve(ctx, text)
	fmt.Fprintf(r.Stdout, "normalized: %q\n", out.Normalized)
	switch out.Kind {
	case parser.OutcomeMatched:
		mods := m.dispatcher.Extract(text)
		fmt.Fprintf(r.Stdout, "matched: %s (%s %.0f)\n", out.Match.Command.Phrase, out.Match.Method, out.Match.Score)
		if len(mods) > 0 {
			fmt.Fprintf(r.Stdout, "modifiers: %s\n", strings.Join(parser.Effects(mods), ", "))
		}
		fmt.Fprintf(r.Stdout, "instruction:\n%s\n", parser.Expand(out.Match.Command, mods))
		return 0
	case parser.OutcomeAmbiguous:
		fmt.Fprintln(r.Stdout, "ambiguous:")
		for _, c := range out.Candidates {
			fmt.Fprintf(r.Stdout, "  %s (%s %.0f)\n", c.Command.Phrase, c.Method, c.Score)
		}
		return session.ExitNoMatch
	default:
		fmt.Fprintln(r.Stdout, "no match")
		return session.ExitNoMatch
	}
}
