package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

// jobFlags binds the fields shared by cron jobs and cron requests
type jobFlags struct {
	coworker string
	schedule string
	timezone string
	message  string
}

func (f *jobFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.coworker, "coworker", "", "coworker the job belongs to (required)")
	fs.StringVar(&f.schedule, "schedule", "", "5-field cron expression (required)")
	fs.StringVar(&f.timezone, "timezone", "", "IANA timezone the schedule is evaluated in (default UTC)")
	fs.StringVar(&f.message, "message", "", "message delivered when the job fires (required)")
}

func (f *jobFlags) input(cmd *Command, name string) office.CronJobInput {
	return office.CronJobInput{
		Name:     name,
		Coworker: f.coworker,
		Schedule: f.schedule,
		Timezone: optional(cmd, "timezone", f.timezone),
		Message:  f.message,
	}
}

// idCommand builds a leaf that takes a single id argument
func (a *app) idCommand(name, summary, usage string, run func(svc *office.Service, id int64) error) *Command {
	return &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
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
			return run(svc, id)
		},
	}
}

func (a *app) cronCommand() *Command {
	return &Command{
		Name:    "cron",
		Summary: "Manage cron jobs",
		Subcommands: []*Command{
			a.cronAddCommand(),
			a.cronListCommand(),
			a.idCommand("show", "Show a cron job and its next run", "claude-office cron show <id>", func(svc *office.Service, id int64) error {
				job, err := svc.GetCronJob(a.ctx, id)
				if err != nil {
					return err
				}
				var next *time.Time
				if job.Enabled {
					if at, err := svc.NextCronRun(a.ctx, id, time.Time{}); err == nil {
						next = &at
					}
				}
				out := struct {
					*db.CronJob
					NextRun *time.Time `json:"next_run,omitempty"`
				}{job, next}
				return a.emit(out, func(w io.Writer) error {
					printCronJob(w, job, next)
					return nil
				})
			}),
			a.idCommand("enable", "Enable a cron job", "claude-office cron enable <id>", func(svc *office.Service, id int64) error {
				if err := svc.EnableCronJob(a.ctx, id); err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "enabled": true}, func(w io.Writer) error {
					fmt.Fprintf(w, "Enabled cron job %d\n", id)
					return nil
				})
			}),
			a.idCommand("disable", "Disable a cron job", "claude-office cron disable <id>", func(svc *office.Service, id int64) error {
				if err := svc.DisableCronJob(a.ctx, id); err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "enabled": false}, func(w io.Writer) error {
					fmt.Fprintf(w, "Disabled cron job %d\n", id)
					return nil
				})
			}),
			a.idCommand("delete", "Delete a cron job and its history", "claude-office cron delete <id>", func(svc *office.Service, id int64) error {
				if err := svc.DeleteCronJob(a.ctx, id); err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "deleted": true}, func(w io.Writer) error {
					fmt.Fprintf(w, "Deleted cron job %d\n", id)
					return nil
				})
			}),
			a.cronCheckCommand(),
			a.cronDueCommand(),
			a.cronNextCommand(),
			a.cronHistoryCommand(),
			a.cronRecordCommand(),
		},
	}
}

func (a *app) cronAddCommand() *Command {
	var f jobFlags
	cmd := &Command{
		Name:    "add",
		Summary: "Create a cron job",
		Usage:   "claude-office cron add <name> --coworker <name> --schedule <expr> --message <text> [--timezone <tz>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
			f.register(fs)
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
		job, err := svc.CreateCronJob(a.ctx, f.input(cmd, args[0]))
		if err != nil {
			return err
		}
		return a.emit(job, func(w io.Writer) error {
			fmt.Fprintf(w, "Created cron job %d (%s for %s)\n", job.ID, job.Name, job.Coworker)
			return nil
		})
	}
	return cmd
}

func (a *app) cronListCommand() *Command {
	var coworker string
	cmd := &Command{
		Name:    "list",
		Summary: "List cron jobs",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			fs.StringVar(&coworker, "coworker", "", "only jobs for this coworker")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		svc, err := a.service()
		if err != nil {
			return err
		}
		jobs, err := svc.ListCronJobs(a.ctx, optional(cmd, "coworker", coworker))
		if err != nil {
			return err
		}
		return a.emit(jobs, func(w io.Writer) error {
			return a.table("ID\tNAME\tCOWORKER\tSCHEDULE\tTIMEZONE\tENABLED\tLAST RUN", func(tw *tabwriter.Writer) {
				for _, j := range jobs {
					tz := "UTC"
					if j.Timezone != nil {
						tz = *j.Timezone
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n", j.ID, j.Name, j.Coworker, j.Schedule, tz, j.Enabled, formatTimePtr(j.LastRun))
				}
			})
		})
	}
	return cmd
}

func (a *app) cronCheckCommand() *Command {
	var at string
	cmd := &Command{
		Name:    "check",
		Summary: "Report whether a job fires during a minute",
		Usage:   "claude-office cron check <id> [--at <time>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
			fs.StringVar(&at, "at", "", "reference time (default now)")
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
		ref, err := parseTime(at)
		if err != nil {
			return err
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		due, err := svc.CheckCronJob(a.ctx, id, ref)
		if err != nil {
			return err
		}
		return a.emit(map[string]any{"id": id, "due": due}, func(w io.Writer) error {
			if due {
				fmt.Fprintf(w, "cron job %d is due\n", id)
			} else {
				fmt.Fprintf(w, "cron job %d is not due\n", id)
			}
			return nil
		})
	}
	return cmd
}

func (a *app) cronDueCommand() *Command {
	var at string
	cmd := &Command{
		Name:    "due",
		Summary: "List enabled jobs that fire during a minute",
		Usage:   "claude-office cron due [--at <time>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("due", pflag.ContinueOnError)
			fs.StringVar(&at, "at", "", "reference time (default now)")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		ref, err := parseTime(at)
		if err != nil {
			return err
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		report, err := svc.DueCronJobs(a.ctx, ref)
		if err != nil {
			return err
		}
		return a.emit(report, func(w io.Writer) error {
			if len(report.Due) == 0 {
				fmt.Fprintf(w, "No jobs due at %s\n", formatTime(report.At))
			} else {
				err := a.table("ID\tNAME\tCOWORKER\tMESSAGE", func(tw *tabwriter.Writer) {
					for _, j := range report.Due {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", j.ID, j.Name, j.Coworker, j.Message)
					}
				})
				if err != nil {
					return err
				}
			}
			for _, s := range report.Skipped {
				fmt.Fprintf(w, "skipped cron job %d (%s): %s\n", s.Job.ID, s.Job.Name, s.Reason)
			}
			return nil
		})
	}
	return cmd
}

func (a *app) cronNextCommand() *Command {
	var (
		after string
		count int
	)
	cmd := &Command{
		Name:    "next",
		Summary: "Show upcoming fire times for a job",
		Usage:   "claude-office cron next <id> [--after <time>] [--count <n>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("next", pflag.ContinueOnError)
			fs.StringVar(&after, "after", "", "start time (default now)")
			fs.IntVarP(&count, "count", "n", 1, "number of fire times")
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
		from, err := parseTime(after)
		if err != nil {
			return err
		}
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		times := make([]time.Time, 0, count)
		for range count {
			next, err := svc.NextCronRun(a.ctx, id, from)
			if err != nil {
				return err
			}
			if next.IsZero() {
				break
			}
			times = append(times, next)
			from = next
		}
		return a.emit(times, func(w io.Writer) error {
			for _, t := range times {
				fmt.Fprintln(w, t.Format(time.RFC3339))
			}
			return nil
		})
	}
	return cmd
}

func (a *app) cronHistoryCommand() *Command {
	var limit int
	cmd := &Command{
		Name:    "history",
		Summary: "Show a job's recorded runs, newest first",
		Usage:   "claude-office cron history <id> [--limit <n>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
			fs.IntVar(&limit, "limit", 20, "maximum entries (0 for all)")
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
		history, err := svc.GetCronHistory(a.ctx, id, limit)
		if err != nil {
			return err
		}
		return a.emit(history, func(w io.Writer) error {
			return a.table("ID\tEXECUTED\tSUCCESS\tERROR", func(tw *tabwriter.Writer) {
				for _, h := range history {
					fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", h.ID, formatTime(h.ExecutedAt), h.Success, orDash(h.ErrorMessage))
				}
			})
		})
	}
	return cmd
}

func (a *app) cronRecordCommand() *Command {
	var (
		at      string
		failed  bool
		message string
	)
	cmd := &Command{
		Name:    "record",
		Summary: "Record a run of a job",
		Usage:   "claude-office cron record <id> [--at <time>] [--failed --error <text>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("record", pflag.ContinueOnError)
			fs.StringVar(&at, "at", "", "execution time (default now)")
			fs.BoolVar(&failed, "failed", false, "the run failed")
			fs.StringVar(&message, "error", "", "error message for a failed run")
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
		executedAt, err := parseTime(at)
		if err != nil {
			return err
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		entry, err := svc.RecordCronRun(a.ctx, id, executedAt, !failed, optional(cmd, "error", message))
		if err != nil {
			return err
		}
		return a.emit(entry, func(w io.Writer) error {
			fmt.Fprintf(w, "Recorded run %d of cron job %d at %s\n", entry.ID, id, formatTime(entry.ExecutedAt))
			return nil
		})
	}
	return cmd
}

func printCronJob(w io.Writer, job *db.CronJob, next *time.Time) {
	tz := "UTC"
	if job.Timezone != nil {
		tz = *job.Timezone
	}
	fmt.Fprintf(w, "ID:       %d\n", job.ID)
	fmt.Fprintf(w, "Name:     %s\n", job.Name)
	fmt.Fprintf(w, "Coworker: %s\n", job.Coworker)
	fmt.Fprintf(w, "Schedule: %s (%s)\n", job.Schedule, tz)
	fmt.Fprintf(w, "Message:  %s\n", job.Message)
	fmt.Fprintf(w, "Enabled:  %t\n", job.Enabled)
	fmt.Fprintf(w, "Created:  %s\n", formatTime(job.CreatedAt))
	fmt.Fprintf(w, "Last run: %s\n", formatTimePtr(job.LastRun))
	fmt.Fprintf(w, "Next run: %s\n", formatTimePtr(next))
}
