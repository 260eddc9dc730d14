package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leaveflow/internal/app/server"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/platform/jobs"
	"leaveflow/internal/platform/lock"
)

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	var tenantID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep now",
		Long: `Evaluate every pending approval against its tenant's escalation
settings and apply reminders, reassignments and escalations.

Without --tenant every tenant with pending approvals is swept. A tenant
whose sweep lock is held by another process is reported as skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withServices(ctx, func(svc *server.Services) error {
				summaries, err := runSweep(ctx, svc, tenantID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, summaries)
				}
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No pending approvals.")
					return nil
				}
				for _, s := range summaries {
					writeSummary(out, s)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Sweep a single tenant")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print summaries as JSON")
	return cmd
}

func runSweep(ctx context.Context, svc *server.Services, tenantID string) ([]escalation.SweepSummary, error) {
	if tenantID == "" {
		return svc.Sweeper.SweepAll(ctx)
	}
	var summary escalation.SweepSummary
	_, err := svc.Jobs.RunNow(ctx, jobs.JobEscalationSweep, tenantID, func(ctx context.Context) (any, error) {
		var err error
		summary, err = svc.Sweeper.Sweep(ctx, tenantID)
		return summary, err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		summary.TenantID = tenantID
		summary.Skipped = true
		summary.SkipReason = "sweep already running"
		return []escalation.SweepSummary{summary}, nil
	}
	if err != nil {
		return nil, err
	}
	return []escalation.SweepSummary{summary}, nil
}

// PreviewCmd returns the preview command
func PreviewCmd() *cobra.Command {
	var tenantID, at string

	cmd := &cobra.Command{
		Use:   "preview <approval-id>",
		Short: "Show what the next sweep would do to one approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				when = parsed
			}
			return withServices(cmd.Context(), func(svc *server.Services) error {
				dec, err := svc.Sweeper.Preview(cmd.Context(), tenantID, args[0], when)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Approval %s at %s\n", args[0], when.Format(time.RFC3339))
				fmt.Fprintf(out, "  action:  %s\n", actionLabel(dec.Action))
				fmt.Fprintf(out, "  level:   %d\n", dec.LevelIndex)
				fmt.Fprintf(out, "  due:     %s (%.1fh elapsed)\n", dec.DueAt.Format(time.RFC3339), dec.ElapsedHours)
				if dec.ApproverID != "" {
					fmt.Fprintf(out, "  next:    %s\n", dec.ApproverID)
				}
				if dec.Reason != "" {
					fmt.Fprintf(out, "  reason:  %s\n", dec.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant owning the approval (required)")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this RFC3339 time")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
