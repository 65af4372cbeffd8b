// Package session runs one dispatch end to end: match, gate, execute or preview,
// record, and cue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/fsm"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/history"
	"github.com/rbright/suzerain/internal/indicator"
	"github.com/rbright/suzerain/internal/monitor"
	"github.com/rbright/suzerain/internal/parser"
	"github.com/rbright/suzerain/internal/route"
	"github.com/rbright/suzerain/internal/stream"
	"github.com/rbright/suzerain/internal/supervisor"
	"github.com/rbright/suzerain/internal/trust"
)

// Exit codes for outcomes that never reach the assistant.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitDeclined = 3
	ExitNoMatch  = 4
)

// MethodPlain marks a fallback dispatch of unmatched text.
const MethodPlain = "plain"

// Status classifies how a dispatch ended.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPreview     Status = "preview"
	StatusDeclined    Status = "declined"
	StatusNoMatch     Status = "no_match"
	StatusAmbiguous   Status = "ambiguous"
	StatusTimeout     Status = "timeout"
	StatusInterrupted Status = "interrupted"
	StatusSpawnFailed Status = "spawn_failed"
)

// Matcher interprets input text.
type Matcher interface {
	Resolve(ctx context.Context, text string) parser.Outcome
	Extract(text string) []grimoire.Modifier
}

// Runner executes an instruction under supervision.
type Runner interface {
	Run(ctx context.Context, req supervisor.Request) (supervisor.Result, error)
	Args(req supervisor.Request) []string
	State() fsm.State
	Busy() bool
}

// Chooser resolves an ambiguous match. ok is false when the user backs out.
type Chooser interface {
	Choose(ctx context.Context, prompt string, options []string) (int, bool, error)
}

// History persists dispatches and supplies the conversation to continue.
type History interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
	LastConversationID(ctx context.Context) (string, bool, error)
}

// Reporter renders progress for the user. It also receives the assistant stream.
type Reporter interface {
	stream.Handler
	Heard(spoken, phrase string, score float64, method string)
	Preview(instruction string, argv []string)
	Quiet(idle time.Duration)
	Finished(state string, exitCode int, d time.Duration, toolUses, streamErrors int)
	Warn(msg string)
}

// Options tunes the controller.
type Options struct {
	DryRun        bool
	Fallback      config.FallbackConfig
	RouteProfiles bool
	WorkDir       string
	Logger        *slog.Logger
}

// Deps are the collaborators of a Controller. Matcher, Router, Gate, and Runner are
// required; the rest may be nil.
type Deps struct {
	Matcher   Matcher
	Router    *route.Router
	Gate      *trust.Gate
	Runner    Runner
	Confirmer trust.Confirmer
	Chooser   Chooser
	History   History
	Indicator indicator.Controller
	Reporter  Reporter
	// Monitor runs alongside the stop trigger during execution, e.g. the spoken
	// interrupt listener.
	Monitor monitor.Monitor
}

// Outcome reports one dispatch.
type Outcome struct {
	Status      Status
	ExitCode    int
	Spoken      string
	Match       parser.Result
	Plain       bool
	Candidates  []parser.Result
	Modifiers   []grimoire.Modifier
	Instruction string
	Route       route.Decision
	Decision    trust.Decision
	Run         supervisor.Result
	Err         error
}

// Executed reports whether the assistant process was started or attempted.
func (o Outcome) Executed() bool { return !o.Run.StartedAt.IsZero() }

type active struct {
	phrase  string
	started time.Time
}

// Controller serializes dispatches onto one runner.
type Controller struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	trigger *monitor.Trigger

	mu     sync.Mutex
	active *active
}

// NewController wires a controller.
func NewController(deps Deps, opts Options) *Controller {
	if deps.Indicator == nil {
		deps.Indicator = indicator.Noop{}
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		trigger: monitor.NewTrigger(),
	}
}

// Stop asks the running dispatch to terminate. It reports whether anything was running.
func (c *Controller) Stop() bool {
	if !c.deps.Runner.Busy() {
		return false
	}
	c.trigger.Fire()
	return true
}

// Dispatch resolves text and carries it through to completion.
func (c *Controller) Dispatch(ctx context.Context, text string) Outcome {
	text = strings.TrimSpace(text)
	out := Outcome{Spoken: text}

	resolved := c.deps.Matcher.Resolve(ctx, text)
	switch resolved.Kind {
	case parser.OutcomeMatched:
		out.Match = resolved.Match
	case parser.OutcomeAmbiguous:
		out.Candidates = resolved.Candidates
		picked, ok := c.choose(ctx, resolved.Candidates)
		if !ok {
			return c.finishUnrun(ctx, out, StatusAmbiguous, ExitNoMatch)
		}
		out.Match = picked
	default:
		if !c.opts.Fallback.Enable || text == "" {
			c.logger.Info("no command matched", "input", text, "normalized", resolved.Normalized)
			return c.finishUnrun(ctx, out, StatusNoMatch, ExitNoMatch)
		}
		out.Plain = true
	}

	if out.Plain {
		out.Instruction = text
		out.Route = c.deps.Router.Route(grimoire.Command{Phrase: text})
		c.deps.Reporter.Heard(text, text, 0, MethodPlain)
	} else {
		cmd := out.Match.Command
		out.Modifiers = c.deps.Matcher.Extract(text)
		out.Instruction = parser.Expand(cmd, out.Modifiers)
		out.Route = c.deps.Router.Route(cmd)
		c.deps.Reporter.Heard(text, cmd.Phrase, out.Match.Score, string(out.Match.Method))
		c.logger.Info("command matched",
			"phrase", cmd.Phrase,
			"score", out.Match.Score,
			"method", string(out.Match.Method),
			"modifiers", parser.Effects(out.Modifiers),
			"category", string(out.Route.Category),
			"tier", string(out.Route.Tier),
		)
	}
	c.deps.Indicator.Heard(ctx, c.phrase(out))

	req := c.request(ctx, out)

	if c.opts.DryRun || parser.HasEffect(out.Modifiers, grimoire.EffectDryRun) {
		base, level := c.deps.Gate.Policy().Levels()
		out.Decision = trust.Decision{Reason: trust.ReasonPreview, Level: level, Base: base}
		return c.preview(ctx, out, req)
	}

	decision, err := c.decide(ctx, out)
	out.Decision = decision
	if err != nil {
		out.Err = err
		c.logger.Warn("trust gate declined", "phrase", c.phrase(out), "error", err.Error())
	}
	if !decision.MayExecute {
		if decision.Reason == trust.ReasonPreview || decision.Reason == trust.ReasonRestricted {
			return c.preview(ctx, out, req)
		}
		return c.finishUnrun(ctx, out, StatusDeclined, ExitDeclined)
	}

	return c.execute(ctx, out, req)
}

func (c *Controller) choose(ctx context.Context, candidates []parser.Result) (parser.Result, bool) {
	if c.deps.Chooser == nil {
		return parser.Result{}, false
	}
	options := make([]string, len(candidates))
	for i, cand := range candidates {
		options[i] = fmt.Sprintf("%s (%.0f)", cand.Command.Phrase, cand.Score)
	}
	idx, ok, err := c.deps.Chooser.Choose(ctx, "Which did you mean?", options)
	if err != nil {
		c.logger.Info("ambiguous match left unresolved", "candidates", len(candidates), "error", err.Error())
		return parser.Result{}, false
	}
	if !ok || idx < 0 || idx >= len(candidates) {
		return parser.Result{}, false
	}
	return candidates[idx], true
}

// decide applies the trust gate. Unmatched text asks first unless auto_plain is on; a
// yes there stands in for the gate's own confirmation.
func (c *Controller) decide(ctx context.Context, out Outcome) (trust.Decision, error) {
	if !out.Plain {
		return c.deps.Gate.Decide(ctx, trust.Subject{
			Phrase:      out.Match.Command.Phrase,
			Instruction: out.Instruction,
			Destructive: out.Match.Command.Confirmation || out.Route.Dangerous(),
		})
	}

	base, level := c.deps.Gate.Policy().Levels()
	if c.opts.Fallback.AutoPlain || level == trust.LevelPreview {
		return c.deps.Gate.Decide(ctx, trust.Subject{Phrase: out.Spoken, Instruction: out.Instruction})
	}
	d := trust.Decision{Reason: trust.ReasonDeclined, Level: level, Base: base}
	if c.deps.Confirmer == nil {
		return d, trust.ErrNoConfirmer
	}
	ok, err := c.deps.Confirmer.Confirm(ctx, fmt.Sprintf("No command matched. Send %q to the assistant as-is?", out.Spoken))
	if err != nil {
		return d, fmt.Errorf("confirm plain dispatch: %w", err)
	}
	if !ok {
		return d, nil
	}
	d.MayExecute, d.Reason = true, trust.ReasonConfirmed
	return d, nil
}

func (c *Controller) request(ctx context.Context, out Outcome) supervisor.Request {
	req := supervisor.Request{
		Instruction: out.Instruction,
		WorkDir:     c.opts.WorkDir,
		Handler:     c.deps.Reporter,
	}
	if c.opts.RouteProfiles {
		req.AllowedTools = out.Route.Profile.Tools
		req.AppendSystemPrompt = out.Route.Profile.SystemPrompt
	}
	if !out.Plain && out.Match.Command.UseContinuation {
		req.Continue = true
		if c.deps.History != nil {
			id, ok, err := c.deps.History.LastConversationID(ctx)
			switch {
			case err != nil:
				c.logger.Warn("continuation lookup failed", "error", err.Error())
			case ok:
				req.Continue = false
				req.ResumeID = id
			}
		}
	}
	return req
}

func (c *Controller) preview(ctx context.Context, out Outcome, req supervisor.Request) Outcome {
	c.deps.Reporter.Preview(out.Instruction, c.deps.Runner.Args(req))
	out.Status = StatusPreview
	out.ExitCode = ExitOK
	c.record(ctx, out)
	return out
}

func (c *Controller) execute(ctx context.Context, out Outcome, req supervisor.Request) Outcome {
	req.Monitor = c.monitor()
	req.OnSoftWarning = func(idle time.Duration) {
		c.deps.Reporter.Quiet(idle)
		c.deps.Indicator.Quiet(ctx, idle)
	}

	// A stop aimed at an earlier dispatch must not end this one.
	c.trigger.Drain()
	c.mu.Lock()
	c.active = &active{phrase: c.phrase(out), started: time.Now()}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
	}()

	res, err := c.deps.Runner.Run(ctx, req)
	if err != nil {
		out.Err = err
		out.Status = StatusFailed
		out.ExitCode = ExitFailure
		if errors.Is(err, supervisor.ErrBusy) {
			c.deps.Reporter.Warn("another command is still running")
		}
		c.deps.Indicator.Failure(ctx, err.Error())
		return out
	}

	out.Run = res
	if res.Err != nil {
		out.Err = res.Err
	}
	out.ExitCode = res.ExitCode
	switch res.Reason {
	case supervisor.ReasonCompleted:
		out.Status = StatusCompleted
	case supervisor.ReasonTimeout:
		out.Status = StatusTimeout
	case supervisor.ReasonInterrupted, supervisor.ReasonCancelled:
		out.Status = StatusInterrupted
	case supervisor.ReasonSpawnFailed:
		out.Status = StatusSpawnFailed
	default:
		out.Status = StatusFailed
	}

	c.deps.Reporter.Finished(string(out.Status), out.ExitCode, res.Duration(), res.ToolUses, res.Errors)
	switch out.Status {
	case StatusCompleted:
		c.deps.Indicator.Success(ctx, c.phrase(out))
	case StatusInterrupted:
		c.deps.Indicator.Interrupted(ctx)
	default:
		c.deps.Indicator.Failure(ctx, fmt.Sprintf("%s: %s", c.phrase(out), out.Status))
	}
	c.record(ctx, out)
	return out
}

func (c *Controller) monitor() monitor.Monitor {
	stop := monitor.Channel{Trigger: c.trigger}
	if c.deps.Monitor == nil {
		return stop
	}
	return monitor.Multi{stop, c.deps.Monitor}
}

func (c *Controller) finishUnrun(ctx context.Context, out Outcome, status Status, code int) Outcome {
	out.Status = status
	out.ExitCode = code
	if status == StatusDeclined {
		c.record(ctx, out)
	}
	return out
}

func (c *Controller) record(ctx context.Context, out Outcome) {
	if c.deps.History == nil {
		return
	}
	entry := history.Entry{
		Spoken:         out.Spoken,
		Phrase:         c.phrase(out),
		Score:          out.Match.Score,
		Method:         string(out.Match.Method),
		ExitCode:       out.ExitCode,
		State:          string(out.Status),
		Duration:       out.Run.Duration(),
		ConversationID: out.Run.SessionID,
	}
	if out.Plain {
		entry.Method = MethodPlain
	}
	for _, m := range out.Modifiers {
		entry.Modifiers = append(entry.Modifiers, m.Effect)
	}
	if _, err := c.deps.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("history record failed", "error", err.Error())
	}
}

func (c *Controller) phrase(out Outcome) string {
	if out.Plain {
		return out.Spoken
	}
	return out.Match.Command.Phrase
}

type nopReporter struct{}

func (nopReporter) Handle(stream.Event)                           {}
func (nopReporter) Heard(string, string, float64, string)         {}
func (nopReporter) Preview(string, []string)                      {}
func (nopReporter) Quiet(time.Duration)                           {}
func (nopReporter) Finished(string, int, time.Duration, int, int) {}
func (nopReporter) Warn(string)                                   {}
