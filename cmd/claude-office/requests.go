package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

func (a *app) cronRequestCommand() *Command {
	return &Command{
		Name:    "cron-request",
		Summary: "Propose cron jobs and review proposals",
		Subcommands: []*Command{
			a.requestCreateCommand(),
			a.requestListCommand(),
			a.idCommand("show", "Show a cron request", "claude-office cron-request show <id>", func(svc *office.Service, id int64) error {
				req, err := svc.GetCronRequest(a.ctx, id)
				if err != nil {
					return err
				}
				return a.emit(req, func(w io.Writer) error {
					printCronRequest(w, req)
					return nil
				})
			}),
			a.reviewCommand(db.CronRequestApproved),
			a.reviewCommand(db.CronRequestRejected),
			a.idCommand("delete", "Delete a cron request in any status", "claude-office cron-request delete <id>", func(svc *office.Service, id int64) error {
				if err := svc.DeleteCronRequest(a.ctx, id); err != nil {
					return err
				}
				return a.emit(map[string]any{"id": id, "deleted": true}, func(w io.Writer) error {
					fmt.Fprintf(w, "Deleted cron request %d\n", id)
					return nil
				})
			}),
			a.idCommand("promote", "Create the cron job for an approved request", "claude-office cron-request promote <id>", func(svc *office.Service, id int64) error {
				job, err := svc.PromoteCronRequest(a.ctx, id)
				if err != nil {
					return err
				}
				return a.emit(job, func(w io.Writer) error {
					fmt.Fprintf(w, "Created cron job %d from request %d\n", job.ID, id)
					return nil
				})
			}),
		},
	}
}

func (a *app) requestCreateCommand() *Command {
	var f jobFlags
	cmd := &Command{
		Name:    "create",
		Summary: "File a pending cron request",
		Usage:   "claude-office cron-request create <name> --coworker <name> --schedule <expr> --message <text> [--timezone <tz>]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
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
		req, err := svc.CreateCronRequest(a.ctx, f.input(cmd, args[0]))
		if err != nil {
			return err
		}
		return a.emit(req, func(w io.Writer) error {
			fmt.Fprintf(w, "Filed cron request %d (%s for %s)\n", req.ID, req.Name, req.Coworker)
			return nil
		})
	}
	return cmd
}

func (a *app) requestListCommand() *Command {
	var status, coworker string
	cmd := &Command{
		Name:    "list",
		Summary: "List cron requests, newest first",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			fs.StringVar(&status, "status", "", "pending, approved or rejected")
			fs.StringVar(&coworker, "coworker", "", "only requests for this coworker")
			return fs
		},
	}
	cmd.Run = func(args []string) error {
		filter := db.CronRequestFilter{Coworker: optional(cmd, "coworker", coworker)}
		if cmd.Changed("status") {
			s, err := db.ParseCronRequestStatus(status)
			if err != nil {
				return err
			}
			filter.Status = &s
		}
		svc, err := a.service()
		if err != nil {
			return err
		}
		requests, err := svc.ListCronRequests(a.ctx, filter)
		if err != nil {
			return err
		}
		return a.emit(requests, func(w io.Writer) error {
			return a.table("ID\tNAME\tCOWORKER\tSCHEDULE\tSTATUS\tREQUESTED\tREVIEWER", func(tw *tabwriter.Writer) {
				for _, r := range requests {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Coworker, r.Schedule, r.Status, formatTime(r.RequestedAt), orDash(r.ReviewedBy))
				}
			})
		})
	}
	return cmd
}

// reviewCommand builds approve or reject
func (a *app) reviewCommand(to db.CronRequestStatus) *Command {
	var (
		reviewer  string
		notes     string
		createJob bool
	)
	name, summary := "approve", "Approve a pending cron request"
	if to == db.CronRequestRejected {
		name, summary = "reject", "Reject a pending cron request"
	}
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("claude-office cron-request %s <id> --reviewer <name> [--notes <text>]", name),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
			fs.StringVar(&reviewer, "reviewer", "", "who is reviewing (required)")
			fs.StringVar(&notes, "notes", "", "reviewer notes")
			if to == db.CronRequestApproved {
				fs.BoolVar(&createJob, "create-job", false, "also create the cron job")
			}
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
		review := office.ReviewInput{Reviewer: reviewer, Notes: optional(cmd, "notes", notes)}

		var req *db.CronRequest
		if to == db.CronRequestApproved {
			req, err = svc.ApproveCronRequest(a.ctx, id, review)
		} else {
			req, err = svc.RejectCronRequest(a.ctx, id, review)
		}
		if err != nil {
			return err
		}

		out := struct {
			Request *db.CronRequest `json:"request"`
			Job     *db.CronJob     `json:"job,omitempty"`
		}{Request: req}
		if createJob {
			if out.Job, err = svc.PromoteCronRequest(a.ctx, id); err != nil {
				return fmt.Errorf("request %d approved, but creating its job failed: %w", id, err)
			}
		}
		return a.emit(out, func(w io.Writer) error {
			fmt.Fprintf(w, "Cron request %d %s by %s\n", req.ID, req.Status, reviewer)
			if out.Job != nil {
				fmt.Fprintf(w, "Created cron job %d\n", out.Job.ID)
			}
			return nil
		})
	}
	return cmd
}

func printCronRequest(w io.Writer, req *db.CronRequest) {
	tz := "UTC"
	if req.Timezone != nil {
		tz = *req.Timezone
	}
	fmt.Fprintf(w, "ID:        %d\n", req.ID)
	fmt.Fprintf(w, "Name:      %s\n", req.Name)
	fmt.Fprintf(w, "Coworker:  %s\n", req.Coworker)
	fmt.Fprintf(w, "Schedule:  %s (%s)\n", req.Schedule, tz)
	fmt.Fprintf(w, "Message:   %s\n", req.Message)
	fmt.Fprintf(w, "Status:    %s\n", req.Status)
	fmt.Fprintf(w, "Requested: %s\n", formatTime(req.RequestedAt))
	if req.Status.Terminal() {
		fmt.Fprintf(w, "Reviewed:  %s by %s\n", formatTimePtr(req.ReviewedAt), orDash(req.ReviewedBy))
		fmt.Fprintf(w, "Notes:     %s\n", orDash(req.ReviewerNotes))
	}
}
