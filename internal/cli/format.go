package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/workflow"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func chainString(chain workflow.ApprovalChain) string {
	if len(chain) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(chain))
	for _, level := range chain {
		if level.Required {
			parts = append(parts, level.Role)
		} else {
			parts = append(parts, level.Role+"?")
		}
	}
	return strings.Join(parts, " → ")
}

func activeLabel(active bool) string {
	if active {
		return color.New(color.FgGreen).Sprint("active  ")
	}
	return color.New(color.FgYellow).Sprint("inactive")
}

func actionLabel(action escalation.Action) string {
	switch action {
	case escalation.ActionNone:
		return color.New(color.FgGreen).Sprint(string(action))
	case escalation.ActionRemind:
		return color.New(color.FgCyan).Sprint(string(action))
	case escalation.ActionAutoApprove:
		return color.New(color.FgHiMagenta).Sprint(string(action))
	case escalation.ActionHold:
		return color.New(color.FgRed).Sprint(string(action))
	default:
		return color.New(color.FgYellow).Sprint(string(action))
	}
}

func writeSummary(w io.Writer, s escalation.SweepSummary) {
	if s.Skipped {
		fmt.Fprintf(w, "%s %s (%s)\n", color.New(color.FgYellow).Sprint("SKIPPED"), s.TenantID, s.SkipReason)
		return
	}
	status := color.New(color.FgGreen).Sprint("OK     ")
	if len(s.Failures) > 0 {
		status = color.New(color.FgRed).Sprint("PARTIAL")
	}
	fmt.Fprintf(w, "%s %s examined=%d reminded=%d reassigned=%d escalated=%d autoApproved=%d held=%d conflicts=%d\n",
		status, s.TenantID, s.Examined, s.Reminded, s.Reassigned, s.Escalated, s.AutoApproved, s.Held, s.Conflicts)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "        %s request=%s: %s\n", f.ApprovalID, f.RequestID, f.Error)
	}
}
