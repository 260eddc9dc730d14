package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"leaveflow/internal/app/server"
	"leaveflow/internal/domain/workflow"
)

// RulesCmd returns the rules command
func RulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect approval routing rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesTestCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	var tenantID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(svc *server.Services) error {
				rules, err := svc.Workflow.ListRules(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, rules)
				}
				if len(rules) == 0 {
					fmt.Fprintf(out, "No rules. Fallback chain: %s\n", chainString(svc.Workflow.Fallback()))
					return nil
				}
				for _, rule := range rules {
					fmt.Fprintf(out, "%s %4d  %-24s %s\n", activeLabel(rule.IsActive), rule.Priority, rule.Name, chainString(rule.ApprovalLevels))
					fmt.Fprintf(out, "               %s\n", rule.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant to list (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rules as JSON")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func rulesTestCmd() *cobra.Command {
	var tenantID, role, leaveType, department, days string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Show which rule a request would match and why",
		RunE: func(cmd *cobra.Command, args []string) error {
			dayCount, err := decimal.NewFromString(days)
			if err != nil {
				return fmt.Errorf("--days must be a number: %w", err)
			}
			req := workflow.RequestAttributes{
				Role:          strings.ToUpper(strings.TrimSpace(role)),
				LeaveTypeCode: strings.TrimSpace(leaveType),
				DayCount:      dayCount,
				Department:    strings.TrimSpace(department),
			}
			return withServices(cmd.Context(), func(svc *server.Services) error {
				result, err := svc.Workflow.Test(cmd.Context(), tenantID, req)
				if err != nil {
					return err
				}
				writeTestResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant whose rules are evaluated (required)")
	cmd.Flags().StringVar(&role, "role", "EMPLOYEE", "Requester role")
	cmd.Flags().StringVar(&leaveType, "leave-type", "", "Leave type code")
	cmd.Flags().StringVar(&department, "department", "", "Requester department")
	cmd.Flags().StringVar(&days, "days", "1", "Working days requested")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func writeTestResult(out io.Writer, result workflow.TestResult) {
	res := result.Resolution
	if res.Fallback {
		fmt.Fprintf(out, "Matched: %s\n", color.New(color.FgYellow).Sprint("(fallback chain)"))
	} else {
		fmt.Fprintf(out, "Matched: %s (%s)\n", color.New(color.FgGreen).Sprint(res.RuleName), res.RuleID)
	}
	fmt.Fprintf(out, "Chain:   %s\n", chainString(res.Chain))
	if len(result.Trace) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, t := range result.Trace {
		var mark string
		switch {
		case t.Matched:
			mark = color.New(color.FgGreen).Sprint("✓")
		case !t.Considered:
			mark = color.New(color.FgHiBlack).Sprint("-")
		default:
			mark = color.New(color.FgRed).Sprint("✗")
		}
		line := fmt.Sprintf("  %s %4d %s", mark, t.Priority, t.Name)
		if len(t.Failed) > 0 {
			failed := make([]string, 0, len(t.Failed))
			for _, f := range t.Failed {
				failed = append(failed, string(f))
			}
			line += " failed: " + strings.Join(failed, ",")
		}
		if !t.Active {
			line += " (inactive)"
		}
		fmt.Fprintln(out, line)
	}
}
