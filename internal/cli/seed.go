package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leaveflow/internal/app/server"
	"leaveflow/internal/domain/directory"
)

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	var tenantID string
	var entries []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register approvers for a tenant",
		Long: `Upsert approver directory entries. Each --approver takes
user:role[:department[:email]]. Running the same seed twice is harmless.

Example:
  leavectl seed --tenant acme --approver mgr-1:MANAGER:eng:mgr@acme.test --approver hr-1:HR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			approvers := make([]directory.Approver, 0, len(entries))
			for _, entry := range entries {
				a, err := parseApprover(entry)
				if err != nil {
					return err
				}
				approvers = append(approvers, a)
			}
			return withServices(cmd.Context(), func(svc *server.Services) error {
				for _, a := range approvers {
					saved, err := svc.Directory.SaveApprover(cmd.Context(), tenantID, a)
					if err != nil {
						return fmt.Errorf("approver %s/%s: %w", a.UserID, a.Role, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s as %s\n", activeLabel(saved.Active), saved.UserID, saved.Role)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant to seed (required)")
	cmd.Flags().StringArrayVar(&entries, "approver", nil, "Approver as user:role[:department[:email]]")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func parseApprover(entry string) (directory.Approver, error) {
	parts := strings.SplitN(entry, ":", 4)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return directory.Approver{}, fmt.Errorf("approver %q: want user:role[:department[:email]]", entry)
	}
	a := directory.Approver{
		UserID: strings.TrimSpace(parts[0]),
		Role:   strings.ToUpper(strings.TrimSpace(parts[1])),
		Active: true,
	}
	if len(parts) > 2 {
		a.Department = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		a.Email = strings.TrimSpace(parts[3])
	}
	return a, nil
}
