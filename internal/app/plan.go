package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/bus"
	"github.com/blackwell-systems/homepilot/internal/output"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
)

var (
	planAt        string
	planReadiness int
	planPublish   bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build today's agenda from the latest data",
	Long: `Build an agenda once from the newest biometric sample, beacon frame,
occupancy report and weather. Tasks over the complexity threshold are split
into subtasks with the configured reasoning service when one is set.

Examples:
  homepilot plan
  homepilot plan --readiness 40           # what if I felt worse?
  homepilot plan --at 2026-10-18T15:00:00Z
  homepilot plan --publish --json`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planAt, "at", "", "Plan as of this RFC 3339 time instead of now")
	planCmd.Flags().IntVar(&planReadiness, "readiness", -1, "Override the readiness score (0-100)")
	planCmd.Flags().BoolVar(&planPublish, "publish", false, "Publish the agenda to the automation bus")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if planAt != "" {
		t, err := time.Parse(time.RFC3339, planAt)
		if err != nil {
			return fmt.Errorf("invalid --at %q: %w", planAt, err)
		}
		now = t
	}
	if planReadiness > 100 {
		return fmt.Errorf("readiness must be in [0,100], got %d", planReadiness)
	}

	svc, err := openServices(slog.Default())
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	snap, err := svc.gatherer.Gather(ctx)
	if err != nil {
		return err
	}
	if snap.Biometrics == nil {
		cause := snap.Errors["biometrics"]
		if cause == nil {
			cause = errors.New("no sample")
		}
		return fmt.Errorf("cannot plan without biometrics (record one with 'homepilot ingest biometrics'): %w", cause)
	}

	bio := *snap.Biometrics
	if planReadiness >= 0 {
		bio.ReadinessScore = planReadiness
	}
	svc.engine.Process(snap.Readings)
	svc.engine.UpdateUserState(bio, snap.Motion)

	agenda := svc.planner.GenerateAgenda(ctx, planner.PlanInput{
		Biometrics: bio,
		Now:        now,
		Occupancy:  snap.Occupancy,
		Weather:    snap.Weather,
	})

	if planPublish {
		if err := svc.pub.Publish(ctx, bus.TopicAgenda, agenda); err != nil {
			return fmt.Errorf("publishing agenda: %w", err)
		}
	}

	if flagJSON {
		return output.WriteJSON(os.Stdout, struct {
			Status rtls.Status    `json:"status"`
			Agenda planner.Agenda `json:"agenda"`
		}{svc.engine.Status(), agenda})
	}
	fmt.Print(output.RenderStatus(svc.engine.Status()))
	fmt.Println()
	fmt.Print(output.RenderAgenda(agenda))
	return nil
}
