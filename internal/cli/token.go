package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leaveflow/internal/domain/auth"
	"leaveflow/internal/platform/config"
)

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	var userID, tenantID, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for local testing",
		Long: `Sign an access token with JWT_SECRET. Refuses to run when APP_ENV is
production.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Environment == "production" {
				return fmt.Errorf("token minting is disabled in production")
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			role = strings.ToUpper(strings.TrimSpace(role))
			if role == "" {
				return fmt.Errorf("--role must not be empty")
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{UserID: userID, TenantID: tenantID, RoleName: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&role, "role", auth.RoleEmployee, "Role name")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
