// Package output renders assistant activity and dispatch status to the terminal and
// asks the user yes/no and pick-one questions.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/suzerain/internal/stream"
)

type styles struct {
	accent  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		accent:  r.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		success: r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		failure: r.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true),
	}
}

// Console writes styled output. Colors follow the capabilities of the writer, so
// redirected output is plain text. Console is a stream.Handler.
type Console struct {
	out          io.Writer
	style        styles
	ShowThinking bool

	mu       sync.Mutex
	midLine  bool
	lastText string
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, style: newStyles(lipgloss.NewRenderer(out))}
}

// Handle renders one assistant event.
func (c *Console) Handle(ev stream.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case stream.KindText:
		if ev.Delta {
			fmt.Fprint(c.out, ev.Text)
			c.midLine = !strings.HasSuffix(ev.Text, "\n")
			c.lastText += ev.Text
			return
		}
		c.line(strings.TrimRight(ev.Text, "\n"))
		c.lastText = ev.Text
	case stream.KindThinking:
		if c.ShowThinking {
			c.line(c.style.muted.Italic(true).Render(ev.Text))
		}
	case stream.KindToolUse:
		c.line(c.style.muted.Render("› " + ev.Tool))
	case stream.KindResult:
		if text := strings.TrimSpace(ev.Text); text != "" && text != strings.TrimSpace(c.lastText) {
			c.line(text)
		}
		c.lastText = ""
	case stream.KindSystem:
		if ev.Text == "init" && ev.SessionID != "" {
			c.line(c.style.muted.Render("session " + ev.SessionID))
		}
	case stream.KindError:
		c.line(c.style.failure.Render("error: " + ev.Text))
	case stream.KindRaw:
		c.line(c.style.warning.Render(ev.Text))
	}
}

// Heard announces the matched command.
func (c *Console) Heard(spoken, phrase string, score float64, method string) {
	c.print(fmt.Sprintf("%s %s %s",
		c.style.accent.Render("▸ "+phrase),
		c.style.muted.Render(fmt.Sprintf("(%s %.0f)", method, score)),
		c.style.muted.Render("heard: "+spoken),
	))
}

// Preview shows what would run without running it.
func (c *Console) Preview(instruction string, argv []string) {
	var b strings.Builder
	b.WriteString(c.style.warning.Render("preview, not executed"))
	b.WriteString("\n")
	b.WriteString(instruction)
	if len(argv) > 0 {
		b.WriteString("\n")
		b.WriteString(c.style.muted.Render("$ " + quoteArgv(argv)))
	}
	c.print(b.String())
}

// Quiet warns that the assistant has been silent for idle.
func (c *Console) Quiet(idle time.Duration) {
	c.print(c.style.warning.Render(fmt.Sprintf("… no output for %s", idle.Round(time.Second))))
}

// Finished summarizes a session.
func (c *Console) Finished(state string, exitCode int, d time.Duration, toolUses, streamErrors int) {
	summary := fmt.Sprintf("%s (exit %d, %s, %d tool uses)", state, exitCode, d.Round(100*time.Millisecond), toolUses)
	if streamErrors > 0 {
		summary = fmt.Sprintf("%s (exit %d, %s, %d tool uses, %d errors)", state, exitCode, d.Round(100*time.Millisecond), toolUses, streamErrors)
	}
	style := c.style.success
	if exitCode != 0 {
		style = c.style.failure
	}
	c.print(style.Render(summary))
}

// Info prints a neutral message.
func (c *Console) Info(msg string) { c.print(c.style.muted.Render(msg)) }

// Warn prints a warning.
func (c *Console) Warn(msg string) { c.print(c.style.warning.Render(msg)) }

// Error prints an error.
func (c *Console) Error(msg string) { c.print(c.style.failure.Render(msg)) }

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(s)
}

// line writes s on its own line, ending a pending inline delta first. Callers hold mu.
func (c *Console) line(s string) {
	if c.midLine {
		fmt.Fprintln(c.out)
		c.midLine = false
	}
	fmt.Fprintln(c.out, s)
}

func quoteArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"$`\\") {
			parts[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
