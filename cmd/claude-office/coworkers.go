package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

func (a *app) coworkerCommand() *Command {
	return &Command{
		Name:    "coworker",
		Summary: "Manage coworkers",
		Subcommands: []*Command{
			a.coworkerAddCommand(),
			{
				Name:    "list",
				Summary: "List coworkers",
				Run: func(args []string) error {
					svc, err := a.service()
					if err != nil {
						return err
					}
					coworkers, err := svc.ListCoworkers(a.ctx)
					if err != nil {
						return err
					}
					return a.emit(coworkers, func(w io.Writer) error {
						return a.table("NAME\tAGENT\tSTATUS\tCREATED", func(tw *tabwriter.Writer) {
							for _, c := range coworkers {
								fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Agent, orDash(c.Status), formatTime(c.CreatedAt))
							}
						})
					})
				},
			},
			{
				Name:    "show",
				Summary: "Show a coworker",
				Usage:   "claude-office coworker show <name>",
				Run: func(args []string) error {
					if err := exactArgs(args, 1, "claude-office coworker show <name>"); err != nil {
						return err
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					c, err := svc.GetCoworker(a.ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(c, func(w io.Writer) error {
						printCoworker(w, c)
						return nil
					})
				},
			},
			{
				Name:    "status",
				Summary: "Set or clear a coworker's status",
				Usage:   "claude-office coworker status <name> [status...]",
				Run: func(args []string) error {
					if len(args) == 0 {
						return fmt.Errorf("coworker name required\n\nusage: claude-office coworker status <name> [status...]")
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					var status *string
					if len(args) > 1 {
						s := strings.Join(args[1:], " ")
						status = &s
					}
					c, err := svc.SetCoworkerStatus(a.ctx, args[0], status)
					if err != nil {
						return err
					}
					return a.emit(c, func(w io.Writer) error {
						fmt.Fprintf(w, "%s: %s\n", c.Name, orDash(c.Status))
						return nil
					})
				},
			},
			{
				Name:    "delete",
				Summary: "Delete a coworker and everything that refers to them",
				Usage:   "claude-office coworker delete <name>",
				Run: func(args []string) error {
					if err := exactArgs(args, 1, "claude-office coworker delete <name>"); err != nil {
						return err
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					report, err := svc.DeleteCoworker(a.ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(report, func(w io.Writer) error {
						fmt.Fprintf(w, "Deleted %s: %d message(s), %d cron job(s), %d cron request(s), %d task(s) unassigned\n",
							report.Coworker, report.Messages, report.CronJobs, report.CronRequests, report.TasksUnassigned)
						return nil
					})
				},
			},
		},
	}
}

func (a *app) coworkerAddCommand() *Command {
	var (
		agent, status, description, philosophy, visual string
	)
	cmd := &Command{
		Name:    "add",
		Summary: "Register a coworker",
		Usage:   "claude-office coworker add <name> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
			fs.StringVar(&agent, "agent", "claude", "agent that backs the coworker")
			fs.StringVar(&status, "status", "", "free-text status")
			fs.StringVar(&description, "description", "", "what the coworker does")
			fs.StringVar(&philosophy, "philosophy", "", "how the coworker works")
			fs.StringVar(&visual, "visual", "", "visual description")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		if err := exactArgs(args, 1, cmd.Usage); err != nil {
			return err
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		c, err := svc.CreateCoworker(a.ctx, office.CoworkerInput{
			Name:              args[0],
			Agent:             agent,
			Status:            optional(cmd, "status", status),
			Description:       description,
			Philosophy:        philosophy,
			VisualDescription: visual,
		})
		if err != nil {
			return err
		}
		return a.emit(c, func(w io.Writer) error {
			fmt.Fprintf(w, "Added coworker %s\n", c.Name)
			return nil
		})
	}
	return cmd
}

func printCoworker(w io.Writer, c *db.Coworker) {
	fmt.Fprintf(w, "Name:        %s\n", c.Name)
	fmt.Fprintf(w, "Agent:       %s\n", c.Agent)
	fmt.Fprintf(w, "Status:      %s\n", orDash(c.Status))
	if c.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", c.Description)
	}
	if c.Philosophy != "" {
		fmt.Fprintf(w, "Philosophy:  %s\n", c.Philosophy)
	}
	if c.VisualDescription != "" {
		fmt.Fprintf(w, "Visual:      %s\n", c.VisualDescription)
	}
	fmt.Fprintf(w, "Created:     %s\n", formatTime(c.CreatedAt))
}

func (a *app) messageCommand() *Command {
	return &Command{
		Name:    "message",
		Summary: "Send and read messages between coworkers",
		Subcommands: []*Command{
			{
				Name:    "send",
				Summary: "Send a message",
				Usage:   "claude-office message send <from> <to> <body...>",
				Run: func(args []string) error {
					if len(args) < 3 {
						return fmt.Errorf("expected sender, recipient and body\n\nusage: claude-office message send <from> <to> <body...>")
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					msg, err := svc.SendMessage(a.ctx, args[0], args[1], strings.Join(args[2:], " "))
					if err != nil {
						return err
					}
					return a.emit(msg, func(w io.Writer) error {
						fmt.Fprintf(w, "Sent message %d to %s\n", msg.ID, msg.Recipient)
						return nil
					})
				},
			},
			a.messageListCommand(),
			{
				Name:    "read",
				Summary: "Mark a message read",
				Usage:   "claude-office message read <id>",
				Run: func(args []string) error {
					if err := exactArgs(args, 1, "claude-office message read <id>"); err != nil {
						return err
					}
					id, err := parseID(args[0])
					if err != nil {
						return err
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					if err := svc.MarkMessageRead(a.ctx, id); err != nil {
						return err
					}
					return a.emit(map[string]any{"id": id, "read": true}, func(w io.Writer) error {
						fmt.Fprintf(w, "Marked message %d read\n", id)
						return nil
					})
				},
			},
		},
	}
}

func (a *app) messageListCommand() *Command {
	var (
		from, to string
		unread   bool
	)
	cmd := &Command{
		Name:    "list",
		Summary: "List messages, newest first",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			fs.StringVar(&from, "from", "", "only messages from this coworker")
			fs.StringVar(&to, "to", "", "only messages to this coworker")
			fs.BoolVar(&unread, "unread", false, "only unread messages")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		svc, err := a.service()
		if err != nil {
			return err
		}
		messages, err := svc.ListMessages(a.ctx, db.MessageFilter{
			Sender:     optional(cmd, "from", from),
			Recipient:  optional(cmd, "to", to),
			UnreadOnly: unread,
		})
		if err != nil {
			return err
		}
		return a.emit(messages, func(w io.Writer) error {
			return a.table("ID\tFROM\tTO\tREAD\tSENT\tBODY", func(tw *tabwriter.Writer) {
				for _, m := range messages {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n", m.ID, m.Sender, m.Recipient, m.Read, formatTime(m.CreatedAt), m.Body)
				}
			})
		})
	}
	return cmd
}
