package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/timesheet-mcp/internal/config"
	"github.com/goodtune/timesheet-mcp/internal/remote"
	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

var (
	checkDate  string
	checkStart string
	checkEnd   string
	checkBreak int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check derivations and connectivity interactively",
	Long:  `Check what hours the adapter would derive for a time range, or probe the configured timesheet service.`,
}

var checkDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Check hour derivation for a time range",
	Long:  `Check the billable and total hours the adapter would derive for a time range. Runs entirely offline.`,
	Example: `  timesheet-mcp check derive --start 09:00 --end 18:00 --break 60
  timesheet-mcp check derive --date 2025-03-10 --start 08:30 --end 17:00`,
	RunE: runCheckDerive,
}

var checkRemoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Check connectivity to the timesheet service",
	Long:    `Resolve the employee identity and list categories against the configured timesheet service.`,
	Example: `  timesheet-mcp --config config.yaml check remote`,
	RunE:    runCheckRemote,
}

func init() {
	// Derivation check flags
	checkDeriveCmd.Flags().StringVar(&checkDate, "date", "", "Day worked (YYYY-MM-DD) - defaults to today")
	checkDeriveCmd.Flags().StringVar(&checkStart, "start", "", "Start of work (HH:MM, required)")
	checkDeriveCmd.Flags().StringVar(&checkEnd, "end", "", "End of work (HH:MM, required)")
	checkDeriveCmd.Flags().IntVar(&checkBreak, "break", 0, "Unpaid break in minutes")
	checkDeriveCmd.MarkFlagRequired("start")
	checkDeriveCmd.MarkFlagRequired("end")

	// Add subcommands
	checkCmd.AddCommand(checkDeriveCmd)
	checkCmd.AddCommand(checkRemoteCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckDerive(cmd *cobra.Command, args []string) error {
	date := checkDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	r := timesheet.TimeRange{
		Date:         date,
		Start:        checkStart,
		End:          checkEnd,
		BreakMinutes: checkBreak,
	}
	derived, err := r.Derive()

	// Display result with colors
	printDeriveResult(r, derived, err)

	return nil
}

func runCheckRemote(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	client, err := remote.NewClient(remote.Config{
		BaseURL:  cfg.Remote.BaseURL,
		APIKey:   cfg.Remote.APIKey,
		TenantID: cfg.Remote.TenantID,
		Timeout:  parseDuration(cfg.Remote.Timeout, 30*time.Second),
		Encoding: remote.Encoding{
			TimeFormat: remote.TimeFormat(cfg.Remote.TimeFormat),
			BreakUnit:  remote.BreakUnit(cfg.Remote.BreakUnit),
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize remote client: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("REMOTE SERVICE CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Base URL:   %s\n", cfg.Remote.BaseURL)
	fmt.Printf("Tenant:     %s\n", cfg.Remote.TenantID)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), parseDuration(cfg.Remote.Timeout, 30*time.Second))
	defer cancel()

	failed := false

	begin := time.Now()
	employeeID, err := client.EmployeeID(ctx)
	elapsed := time.Since(begin)
	fmt.Print("Identity:   ")
	if err != nil {
		red.Println("FAILED")
		fmt.Printf("            → %v\n", err)
		failed = true
	} else {
		green.Println("OK")
		fmt.Printf("            → employee %s in %s\n", employeeID, elapsed.Round(time.Millisecond))
	}

	begin = time.Now()
	categories, err := client.ListCategories(ctx)
	elapsed = time.Since(begin)
	fmt.Print("Categories: ")
	if err != nil {
		red.Println("FAILED")
		fmt.Printf("            → %v\n", err)
		failed = true
	} else {
		green.Println("OK")
		fmt.Printf("            → %d categories in %s\n", len(categories), elapsed.Round(time.Millisecond))
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if failed {
		return fmt.Errorf("remote service check failed")
	}
	return nil
}

// printDeriveResult prints the derivation check result with colors
func printDeriveResult(r timesheet.TimeRange, derived timesheet.Derived, err error) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("TIME RANGE CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Date:       %s\n", r.Date)
	fmt.Printf("Start:      %s\n", r.Start)
	fmt.Printf("End:        %s\n", r.End)
	fmt.Printf("Break:      %d minutes\n", r.BreakMinutes)
	fmt.Println()

	cyan.Print("Decision:   ")
	if err != nil {
		red.Println("REJECT")
		fmt.Printf("            → %v\n", err)
		fmt.Println("            → An entry with this range would be refused locally")
		fmt.Println("            → Nothing would be sent to the timesheet service")
	} else {
		green.Println("ACCEPT")
		fmt.Printf("            → %.2f billable hours\n", derived.BillableHours)
		fmt.Printf("            → %.2f total hours on site\n", derived.TotalHours)
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
