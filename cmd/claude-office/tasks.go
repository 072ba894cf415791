package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
	"github.com/kylemclaren/claude-office/internal/tui"
)

func (a *app) taskCommand() *Command {
	return &Command{
		Name:    "task",
		Summary: "Manage tasks on the board",
		Subcommands: []*Command{
			a.taskAddCommand(),
			a.taskListCommand("list", "List tasks"),
			a.taskShowCommand(),
			a.taskUpdateCommand(),
			{
				Name:    "move",
				Summary: "Move a task to another column",
				Usage:   "claude-office task move <id> <column>",
				Run: func(args []string) error {
					if len(args) < 2 {
						return fmt.Errorf("expected a task id and a column\n\nusage: claude-office task move <id> <column>")
					}
					id, err := parseID(args[0])
					if err != nil {
						return err
					}
					col, err := db.ParseColumn(strings.Join(args[1:], " "))
					if err != nil {
						return err
					}
					svc, err := a.service()
					if err != nil {
						return err
					}
					task, err := svc.MoveTask(a.ctx, id, col)
					if err != nil {
						return err
					}
					return a.emitTask(task, fmt.Sprintf("Moved task %d to %s", task.ID, task.Column))
				},
			},
			{
				Name:    "assign",
				Summary: "Assign a task to a coworker",
				Usage:   "claude-office task assign <id> <coworker>",
				Run: func(args []string) error {
					if err := exactArgs(args, 2, "claude-office task assign <id> <coworker>"); err != nil {
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
					task, err := svc.AssignTask(a.ctx, id, args[1])
					if err != nil {
						return err
					}
					return a.emitTask(task, fmt.Sprintf("Assigned task %d to %s", task.ID, args[1]))
				},
			},
			a.idCommand("unassign", "Clear a task's assignee", "claude-office task unassign <id>", func(svc *office.Service, id int64) error {
				task, err := svc.UnassignTask(a.ctx, id)
				if err != nil {
					return err
				}
				return a.emitTask(task, fmt.Sprintf("Unassigned task %d", task.ID))
			}),
			a.idCommand("delete", "Delete a task and its history", "claude-office task delete <id>", func(svc *office.Service, id int64) error {
				if err := svc.DeleteTask(a.ctx, id); err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "deleted": true}, func(w io.Writer) error {
					fmt.Fprintf(w, "Deleted task %d\n", id)
					return nil
				})
			}),
			a.taskListCommand("search", "Search task titles and descriptions"),
			{
				Name:    "stats",
				Summary: "Count tasks per column",
				Run: func(args []string) error {
					svc, err := a.service()
					if err != nil {
						return err
					}
					stats, err := svc.ColumnStats(a.ctx)
					if err != nil {
						return err
					}
					return a.emit(stats, func(w io.Writer) error {
						return a.table("COLUMN\tTASKS", func(tw *tabwriter.Writer) {
							for _, s := range stats {
								fmt.Fprintf(tw, "%s\t%d\n", s.Column, s.Count)
							}
						})
					})
				},
			},
			a.idCommand("history", "Show a task's column moves and time per column", "claude-office task history <id>", func(svc *office.Service, id int64) error {
				history, err := svc.TaskHistory(a.ctx, id)
				if err != nil {
					return err
				}
				durations, err := svc.ColumnDurations(a.ctx, id)
				if err != nil {
					return err
				}
				out := struct {
					History   []*db.TaskHistory       `json:"history"`
					Durations []office.ColumnDuration `json:"durations"`
				}{history, durations}
				return a.emit(out, func(w io.Writer) error {
					printTaskHistory(w, history, durations)
					return nil
				})
			}),
		},
	}
}

func (a *app) emitTask(task *db.Task, summary string) error {
	return a.emit(task, func(w io.Writer) error {
		fmt.Fprintln(w, summary)
		return nil
	})
}

func (a *app) taskAddCommand() *Command {
	var (
		description, assignee, column string
		deps                          []int64
	)
	cmd := &Command{
		Name:    "add",
		Summary: "Create a task",
		Usage:   "claude-office task add <title...> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
			fs.StringVarP(&description, "description", "d", "", "task description (markdown)")
			fs.StringVar(&assignee, "assignee", "", "coworker to assign")
			fs.StringVar(&column, "column", "", "starting column (default idea)")
			fs.Int64SliceVar(&deps, "depends-on", nil, "ids of tasks this one depends on")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("task title required\n\nusage: %s", cmd.Usage)
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		task, err := svc.CreateTask(a.ctx, office.TaskInput{
			Title:        strings.Join(args, " "),
			Description:  description,
			Assignee:     optional(cmd, "assignee", assignee),
			Column:       db.Column(column),
			Dependencies: deps,
		})
		if err != nil {
			return err
		}
		return a.emitTask(task, fmt.Sprintf("Created task %d in %s", task.ID, task.Column))
	}
	return cmd
}

// taskListCommand builds list, or search when name is "search"
func (a *app) taskListCommand(name, summary string) *Command {
	var assignee, column string
	usage := "claude-office task list [--assignee <name>] [--column <column>]"
	if name == "search" {
		usage = "claude-office task search <query...> [--assignee <name>] [--column <column>]"
	}
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
			fs.StringVar(&assignee, "assignee", "", "only tasks assigned to this coworker")
			fs.StringVar(&column, "column", "", "only tasks in this column")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		filter := db.TaskFilter{Assignee: optional(cmd, "assignee", assignee)}
		if cmd.Changed("column") {
			col, err := db.ParseColumn(column)
			if err != nil {
				return err
			}
			filter.Column = &col
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		var tasks []*db.Task
		if name == "search" {
			if len(args) == 0 {
				return fmt.Errorf("search query required\n\nusage: %s", usage)
			}
			tasks, err = svc.SearchTasks(a.ctx, strings.Join(args, " "), filter)
		} else {
			tasks, err = svc.ListTasks(a.ctx, filter)
		}
		if err != nil {
			return err
		}
		return a.emit(tasks, func(w io.Writer) error {
			return a.table("ID\tTITLE\tCOLUMN\tASSIGNEE\tUPDATED", func(tw *tabwriter.Writer) {
				for _, t := range tasks {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Column, orDash(t.Assignee), formatTime(t.UpdatedAt))
				}
			})
		})
	}
	return cmd
}

func (a *app) taskShowCommand() *Command {
	var raw bool
	cmd := &Command{
		Name:    "show",
		Summary: "Show a task with its description rendered",
		Usage:   "claude-office task show <id> [--raw]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
			fs.BoolVar(&raw, "raw", false, "print the description without markdown rendering")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		if err := exactArgs(args, 1, cmd.Usage); err != nil {
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
		task, err := svc.GetTask(a.ctx, id)
		if err != nil {
			return err
		}
		return a.emit(task, func(w io.Writer) error {
			fmt.Fprintf(w, "#%d %s\n", task.ID, task.Title)
			fmt.Fprintf(w, "Column:     %s\n", task.Column)
			fmt.Fprintf(w, "Assignee:   %s\n", orDash(task.Assignee))
			if len(task.Dependencies) > 0 {
				fmt.Fprintf(w, "Depends on: %s\n", formatIDs(task.Dependencies))
			}
			fmt.Fprintf(w, "Created:    %s\n", formatTime(task.CreatedAt))
			fmt.Fprintf(w, "Updated:    %s\n", formatTime(task.UpdatedAt))
			if task.Description == "" {
				return nil
			}
			desc := task.Description
			if !raw {
				rendered, err := tui.RenderMarkdown(task.Description, 80)
				if err != nil {
					a.log.Debug().Err(err).Int64("task_id", task.ID).Msg("markdown rendering failed")
				} else {
					desc = rendered
				}
			}
			fmt.Fprintf(w, "\n%s\n", desc)
			return nil
		})
	}
	return cmd
}

func (a *app) taskUpdateCommand() *Command {
	var (
		title, description, assignee, column string
		unassign, clearDeps                  bool
		deps                                 []int64
	)
	cmd := &Command{
		Name:    "update",
		Summary: "Change any of a task's fields",
		Usage:   "claude-office task update <id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
			fs.StringVar(&title, "title", "", "new title")
			fs.StringVarP(&description, "description", "d", "", "new description")
			fs.StringVar(&assignee, "assignee", "", "new assignee")
			fs.BoolVar(&unassign, "unassign", false, "clear the assignee")
			fs.StringVar(&column, "column", "", "new column")
			fs.Int64SliceVar(&deps, "depends-on", nil, "replace the dependency list")
			fs.BoolVar(&clearDeps, "clear-deps", false, "remove every dependency")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		if err := exactArgs(args, 1, cmd.Usage); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		upd := office.TaskUpdate{
			Title:       optional(cmd, "title", title),
			Description: optional(cmd, "description", description),
			Assignee:    optional(cmd, "assignee", assignee),
			Unassign:    unassign,
		}
		if cmd.Changed("column") {
			col := db.Column(column)
			upd.Column = &col
		}
		switch {
		case clearDeps && cmd.Changed("depends-on"):
			return fmt.Errorf("--depends-on and --clear-deps are mutually exclusive")
		case clearDeps:
			upd.Dependencies = &[]int64{}
		case cmd.Changed("depends-on"):
			upd.Dependencies = &deps
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		task, err := svc.UpdateTask(a.ctx, id, upd)
		if err != nil {
			return err
		}
		return a.emitTask(task, fmt.Sprintf("Updated task %d", task.ID))
	}
	return cmd
}

func printTaskHistory(w io.Writer, history []*db.TaskHistory, durations []office.ColumnDuration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MOVED\tFROM\tTO")
	for _, h := range history {
		from := "-"
		if h.FromColumn != nil {
			from = string(*h.FromColumn)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", formatTime(h.MovedAt), from, h.ToColumn)
	}
	tw.Flush()

	if len(durations) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTIME")
	for _, d := range durations {
		fmt.Fprintf(tw, "%s\t%s\n", d.Column, d.Duration.Round(time.Second))
	}
	tw.Flush()
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
