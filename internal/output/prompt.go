package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when a question needs a terminal and there is none.
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Prompter asks questions on a line-oriented input.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter reads from in. Questions are declined when in is not a terminal.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
	}
}

// NewScriptedPrompter answers from r as if it were a terminal.
func NewScriptedPrompter(r io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: out, interactive: true}
}

// Interactive reports whether questions can be answered.
func (p *Prompter) Interactive() bool { return p.interactive }

// ReadLine reads one line of input. io.EOF is returned at end of input.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- result{strings.TrimRight(line, "\r\n"), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.line, r.err
	}
}

// Confirm asks a yes/no question; anything but y or yes is no. Without a terminal
// the answer is no.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if !p.interactive {
		return false, nil
	}
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.ReadLine(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Choose prints a numbered list and returns the picked index. ok is false when the
// user cancels with an empty line, 0, q, or end of input.
func (p *Prompter) Choose(ctx context.Context, prompt string, options []string) (int, bool, error) {
	if !p.interactive {
		return 0, false, ErrNotInteractive
	}
	if len(options) == 0 {
		return 0, false, nil
	}
	fmt.Fprintln(p.out, prompt)
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}

	for {
		fmt.Fprintf(p.out, "choose 1-%d (0 to cancel): ", len(options))
		line, err := p.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, false, nil
			}
			return 0, false, err
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || line == "0" || line == "q" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, true, nil
		}
		fmt.Fprintf(p.out, "%q is not a choice\n", line)
	}
}
