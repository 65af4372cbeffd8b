// Package cli defines the suzerain command tree and turns argv into an Invocation.
package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Command names one subcommand.
type Command string

const (
	CommandListen   Command = "listen"
	CommandREPL     Command = "repl"
	CommandRun      Command = "run"
	CommandMatch    Command = "match"
	CommandCommands Command = "commands"
	CommandValidate Command = "validate"
	CommandHistory  Command = "history"
	CommandStatus   Command = "status"
	CommandStop     Command = "stop"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandMCP      Command = "mcp"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// Flags are the persistent flags shared by every subcommand. Zero values leave the
// config file in charge.
type Flags struct {
	ConfigPath   string
	GrimoirePath string
	Trust        int
	DryRun       bool
	Semantic     bool
	Dangerous    bool
	AutoPlain    bool
	WorkDir      string
	Verbose      bool
}

// Invocation is a parsed command line.
type Invocation struct {
	Command Command
	Args    []string
	Flags   Flags

	Once   bool
	Filter string
	Limit  int
}

// Text joins the positional arguments.
func (i Invocation) Text() string {
	return strings.TrimSpace(strings.Join(i.Args, " "))
}

// Parse runs the command tree over args. Help output goes to out. A help request, or
// no subcommand at all, yields CommandHelp.
func Parse(args []string, out io.Writer) (Invocation, error) {
	inv := Invocation{}
	root := newRoot(&inv)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	if err := root.Execute(); err != nil {
		return Invocation{}, err
	}
	if inv.Command == "" {
		inv.Command = CommandHelp
	}
	return inv, nil
}

func newRoot(inv *Invocation) *cobra.Command {
	root := &cobra.Command{
		Use:   "suzerain",
		Short: "Dispatch spoken or typed phrases to a supervised coding assistant",
		Long: "suzerain matches short phrases against a grimoire of command templates, expands them " +
			"into assistant instructions, and runs the assistant under a trust policy with a spoken " +
			"or signalled interrupt.",
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&inv.Flags.ConfigPath, "config", "", "config file path (default $XDG_CONFIG_HOME/suzerain/config.yaml)")
	pf.StringVar(&inv.Flags.GrimoirePath, "grimoire", "", "grimoire file (overrides grimoire.path)")
	pf.IntVar(&inv.Flags.Trust, "trust", 0, "trust level 1-5 (overrides trust.level)")
	pf.BoolVar(&inv.Flags.DryRun, "dry-run", false, "preview instructions without running the assistant")
	pf.BoolVar(&inv.Flags.Semantic, "semantic", false, "enable the embedding fallback matcher")
	pf.BoolVar(&inv.Flags.Dangerous, "dangerous", false, "pass --dangerously-skip-permissions to the assistant")
	pf.BoolVar(&inv.Flags.AutoPlain, "auto-plain", false, "send unmatched text to the assistant without asking")
	pf.StringVar(&inv.Flags.WorkDir, "cwd", "", "working directory for the assistant")
	pf.BoolVarP(&inv.Flags.Verbose, "verbose", "v", false, "tee debug logs to stderr")

	set := func(c Command) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			inv.Command = c
			inv.Args = args
			return nil
		}
	}

	listen := &cobra.Command{
		Use:   "listen",
		Short: "Listen on the microphone and dispatch each utterance",
		Args:  cobra.NoArgs,
		RunE:  set(CommandListen),
	}
	listen.Flags().BoolVar(&inv.Once, "once", false, "exit after one dispatch")

	commands := &cobra.Command{
		Use:   "commands",
		Short: "List grimoire commands",
		Args:  cobra.NoArgs,
		RunE:  set(CommandCommands),
	}
	commands.Flags().StringVarP(&inv.Filter, "filter", "f", "", "fuzzy filter over phrases, aliases, and tags")

	hist := &cobra.Command{
		Use:   "history",
		Short: "Show recent dispatches",
		Args:  cobra.NoArgs,
		RunE:  set(CommandHistory),
	}
	hist.Flags().IntVarP(&inv.Limit, "limit", "n", 20, "number of entries")

	root.AddCommand(
		listen,
		&cobra.Command{
			Use:   "repl",
			Short: "Read phrases from stdin and dispatch each line",
			Args:  cobra.NoArgs,
			RunE:  set(CommandREPL),
		},
		&cobra.Command{
			Use:   "run <phrase...>",
			Short: "Dispatch one phrase",
			Args:  cobra.MinimumNArgs(1),
			RunE:  set(CommandRun),
		},
		&cobra.Command{
			Use:   "match <phrase...>",
			Short: "Show how a phrase resolves without dispatching it",
			Args:  cobra.MinimumNArgs(1),
			RunE:  set(CommandMatch),
		},
		commands,
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the config and grimoire",
			Args:  cobra.NoArgs,
			RunE:  set(CommandValidate),
		},
		hist,
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of a running instance",
			Args:  cobra.NoArgs,
			RunE:  set(CommandStatus),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Interrupt the command a running instance is executing",
			Args:  cobra.NoArgs,
			RunE:  set(CommandStop),
		},
		&cobra.Command{
			Use:   "devices",
			Short: "List available input devices",
			Args:  cobra.NoArgs,
			RunE:  set(CommandDevices),
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "Run configuration and environment checks",
			Args:  cobra.NoArgs,
			RunE:  set(CommandDoctor),
		},
		&cobra.Command{
			Use:   "mcp",
			Short: "Serve grimoire matching and voice status as MCP tools over stdio",
			Args:  cobra.NoArgs,
			RunE:  set(CommandMCP),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE:  set(CommandVersion),
		},
	)
	return root
}
