package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/output"
	"github.com/blackwell-systems/homepilot/internal/store"
)

var (
	auditCategory string
	auditLimit    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail",
	Long: `Show recent audit entries, newest first. Categories include biometrics,
location, planning, decomposition, context, automation and credentials.

Examples:
  homepilot audit
  homepilot audit --category decomposition --limit 50`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditCategory, "category", "", "Only show entries in this category")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of entries")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditLimit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", auditLimit)
	}
	return withDB(func(db *store.DB) error {
		entries, err := db.RecentAuditEntries(cmd.Context(), auditCategory, auditLimit)
		if err != nil {
			return fmt.Errorf("reading audit log: %w", err)
		}
		if flagJSON {
			return output.WriteJSON(os.Stdout, entries)
		}
		if len(entries) == 0 {
			fmt.Println(output.StyleMuted.Render("No audit entries."))
			return nil
		}
		fmt.Print(output.RenderAudit(entries))
		return nil
	})
}
