// Package app contains the Cobra command tree for homepilot.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "homepilot",
	Short: "Location-aware state tracking and energy-budgeted daily planning",
	Long: `homepilot fuses indoor beacon readings and biometrics into a live
estimate of where you are and how alert you are, then builds a daily agenda
that fits your energy budget, the time left in the day, and the current
weather and occupancy.

Sensor data is ingested with 'homepilot ingest'; the backlog is managed with
'homepilot task'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(flagVerbose))
		output.ConfigureColor(flagNoColor)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("homepilot", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  ingest    Record biometrics, beacon readings, or occupancy")
		fmt.Println("  task      Add, import, list, and complete backlog tasks")
		fmt.Println("  plan      Build today's agenda from the latest data")
		fmt.Println("  run       Run the control loop and publish changes")
		fmt.Println("  audit     Show the audit trail")
		fmt.Println("  mcp       Serve the live state over MCP stdio")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/homepilot/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

// newLogger returns a text logger on stderr.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
