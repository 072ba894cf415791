package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/tui"
	"github.com/kylemclaren/claude-office/internal/upgrade"
	"github.com/kylemclaren/claude-office/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "claude-office: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run executes one command line. Global flags come before the command and
// are also accepted after it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	a := &app{ctx: ctx, stdout: stdout, stderr: stderr}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	global := a.globalFlags()
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.rootCommand(global).PrintHelp(stderr)
			return nil
		}
		return fmt.Errorf("%w\n\nRun 'claude-office --help' for usage.", err)
	}
	return a.rootCommand(global).Execute(global.Args())
}

func (a *app) rootCommand(global *pflag.FlagSet) *Command {
	return &Command{
		Name:       "claude-office",
		Summary:    "claude-office - coworkers, cron jobs and a task board for Claude agents",
		Usage:      "claude-office [global flags] [command]",
		persistent: global,
		stderr:     a.stderr,
		Subcommands: []*Command{
			a.coworkerCommand(),
			a.messageCommand(),
			a.cronCommand(),
			a.cronRequestCommand(),
			a.taskCommand(),
			a.boardCommand(),
			a.tuiCommand(),
			a.upgradeCommand(),
			{
				Name:    "version",
				Summary: "Show version information",
				Run: func(args []string) error {
					return a.emit(map[string]string{
						"version": version.Version,
						"commit":  version.Commit,
						"date":    version.Date,
					}, func(w io.Writer) error {
						fmt.Fprintln(w, version.Info())
						return nil
					})
				},
			},
		},
		// no command launches the interactive board
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q\n\nRun 'claude-office --help' for usage.", args[0])
			}
			return a.runTUI("")
		},
	}
}

func (a *app) boardCommand() *Command {
	var (
		plain    bool
		width    int
		assignee string
	)
	cmd := &Command{
		Name:    "board",
		Summary: "Print the task board",
		Usage:   "claude-office board [--plain] [--assignee <name>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("board", pflag.ContinueOnError)
			fs.BoolVar(&plain, "plain", false, "one column after another without borders")
			fs.IntVar(&width, "width", 0, "total width of the bordered board (default 120)")
			fs.StringVar(&assignee, "assignee", "", "only tasks assigned to this coworker")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		svc, err := a.service()
		if err != nil {
			return err
		}
		board, err := svc.Board(a.ctx, db.TaskFilter{Assignee: optional(cmd, "assignee", assignee)})
		if err != nil {
			return err
		}
		return a.emit(board, func(w io.Writer) error {
			if plain {
				_, err := io.WriteString(w, tui.RenderPlainBoard(board))
				return err
			}
			_, err := fmt.Fprintln(w, tui.RenderBoard(board, width, -1, -1))
			return err
		})
	}
	return cmd
}

func (a *app) tuiCommand() *Command {
	var reviewer string
	return &Command{
		Name:    "tui",
		Summary: "Open the interactive board",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("tui", pflag.ContinueOnError)
			fs.StringVar(&reviewer, "reviewer", "", "name recorded when reviewing cron requests (default $USER)")
			return fs
		},
		Run: func(args []string) error {
			return a.runTUI(reviewer)
		},
	}
}

func (a *app) runTUI(reviewer string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	if reviewer == "" {
		reviewer = os.Getenv("USER")
	}
	var opts []tui.Option
	if reviewer != "" {
		opts = append(opts, tui.WithReviewer(reviewer))
	}
	if err := tui.Run(a.ctx, svc, opts...); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func (a *app) upgradeCommand() *Command {
	var check bool
	return &Command{
		Name:    "upgrade",
		Summary: "Upgrade claude-office to the latest release",
		Usage:   "claude-office upgrade [--check]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("upgrade", pflag.ContinueOnError)
			fs.BoolVar(&check, "check", false, "only report whether an update is available")
			return fs
		},
		Run: func(args []string) error {
			log, err := a.logger()
			if err != nil {
				return err
			}
			u := upgrade.New(a.stdout, log)
			if !check {
				return u.Upgrade(a.ctx, "")
			}
			release, available, err := u.Check(a.ctx)
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			return a.emit(map[string]any{
				"current":   u.Current,
				"latest":    release.TagName,
				"available": available,
			}, func(w io.Writer) error {
				if available {
					fmt.Fprintf(w, "Update available: %s -> %s\nRun 'claude-office upgrade' to install it.\n", u.Current, release.TagName)
				} else {
					fmt.Fprintf(w, "Already running the latest version (%s)\n", u.Current)
				}
				return nil
			})
		},
	}
}
