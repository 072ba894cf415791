package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node in the CLI tree.
type Command struct {
	// Name is the command name as typed by the user.
	Name string

	// Summary is the one-line description shown in the parent's listing.
	Summary string

	// Usage is the usage line. If empty it is synthesized.
	Usage string

	// Flags returns the command's flag set. Called on every parse so each
	// invocation starts from the defaults.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run executes the command with the positional args left after flag
	// parsing.
	Run func(args []string) error

	// persistent flags are accepted by every command under this one
	persistent *pflag.FlagSet

	stderr io.Writer
	parent *Command
	parsed *pflag.FlagSet
}

// Execute parses args and dispatches to a subcommand or Run.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.errOut())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name := args[0]
		for _, sub := range c.Subcommands {
			if sub.Name == name {
				sub.parent = c
				return sub.Execute(args[1:])
			}
		}
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
	}

	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(c.errOut())
		return fmt.Errorf("%s: subcommand required", c.fullName())
	}

	flagSet := c.flagSet()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			c.PrintHelp(c.errOut())
			return nil
		}
		return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
	}
	c.parsed = flagSet

	if c.Run == nil {
		c.PrintHelp(c.errOut())
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(flagSet.Args())
}

// Changed reports whether the named flag was set on the command line.
func (c *Command) Changed(name string) bool {
	return c.parsed != nil && c.parsed.Changed(name)
}

// flagSet builds the command's own flags plus every inherited persistent flag
func (c *Command) flagSet() *pflag.FlagSet {
	var fs *pflag.FlagSet
	if c.Flags != nil {
		fs = c.Flags()
	} else {
		fs = pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	}
	fs.SetOutput(io.Discard)
	for p := c; p != nil; p = p.parent {
		if p.persistent != nil {
			fs.AddFlagSet(p.persistent)
		}
	}
	return fs
}

// PrintHelp writes usage, subcommands and flags to w.
func (c *Command) PrintHelp(w io.Writer) {
	if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", c.fullName())
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", c.fullName())
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		var flagHelp strings.Builder
		fs := c.Flags()
		fs.SetOutput(&flagHelp)
		fs.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", flagHelp.String())
		}
	}
	for p := c; p != nil; p = p.parent {
		if p.persistent == nil {
			continue
		}
		var flagHelp strings.Builder
		p.persistent.SetOutput(&flagHelp)
		p.persistent.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nGlobal Flags:\n%s", flagHelp.String())
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

func (c *Command) errOut() io.Writer {
	for p := c; p != nil; p = p.parent {
		if p.stderr != nil {
			return p.stderr
		}
	}
	return io.Discard
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}

// exactArgs checks the positional argument count for a leaf command
func exactArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d\n\nusage: %s", n, len(args), usage)
	}
	return nil
}
