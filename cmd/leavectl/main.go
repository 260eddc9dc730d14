package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"leaveflow/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "leavectl",
		Short: "Operator tool for the leave approval service",
		Long: `leavectl talks to the same store, lock and event bus as the server.
It runs escalation sweeps by hand, inspects routing rules and mints
development tokens.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.PreviewCmd())
	rootCmd.AddCommand(cli.RulesCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.SeedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
