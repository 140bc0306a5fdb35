package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timesheet-mcp",
	Short: "Timesheet MCP adapter - company timesheet tools for AI assistants",
	Long: `timesheet-mcp exposes a company timesheet service to AI assistants over
the Model Context Protocol. Assistants look up clients, projects, categories
and locations, then create, update and delete timesheet entries through it.
Billable and total hours are always derived from the time range here; they
are never accepted from the caller.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serving on stdio when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: ./timesheet-mcp.yaml, then ~/.config/timesheet-mcp/)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
