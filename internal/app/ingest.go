package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/store"
)

var (
	ingestHeartRate int
	ingestHRV       float64
	ingestSleep     int
	ingestReadiness int
	ingestTemp      float64
	ingestMotion    bool
	ingestAlone     bool
	ingestPeople    int
	ingestRoom      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record biometrics, beacon readings, or occupancy",
	Long: `Record one sensor observation. The control loop and 'plan' always use
the newest observation of each kind.

Examples:
  homepilot ingest biometrics --hr 62 --hrv 48 --sleep 81 --readiness 75
  homepilot ingest rssi kitchen_beacon_1=-48 office_beacon_1=-81 --motion
  homepilot ingest occupancy --alone --people 1 --room office`,
}

var ingestBiometricsCmd = &cobra.Command{
	Use:   "biometrics",
	Short: "Record a biometric sample",
	Args:  cobra.NoArgs,
	RunE:  runIngestBiometrics,
}

var ingestRSSICmd = &cobra.Command{
	Use:   "rssi beacon=strength...",
	Short: "Record a frame of beacon signal strengths",
	Args:  cobra.ArbitraryArgs,
	RunE:  runIngestRSSI,
}

var ingestOccupancyCmd = &cobra.Command{
	Use:   "occupancy",
	Short: "Record an occupancy observation",
	Args:  cobra.NoArgs,
	RunE:  runIngestOccupancy,
}

func init() {
	f := ingestBiometricsCmd.Flags()
	f.IntVar(&ingestHeartRate, "hr", 0, "Heart rate in bpm")
	f.Float64Var(&ingestHRV, "hrv", 0, "Heart rate variability in ms")
	f.IntVar(&ingestSleep, "sleep", 0, "Sleep score (0-100)")
	f.IntVar(&ingestReadiness, "readiness", 0, "Readiness score (0-100)")
	f.Float64Var(&ingestTemp, "temp", 0, "Body temperature deviation")
	_ = ingestBiometricsCmd.MarkFlagRequired("hr")
	_ = ingestBiometricsCmd.MarkFlagRequired("readiness")

	ingestRSSICmd.Flags().BoolVar(&ingestMotion, "motion", false, "Motion was detected with this frame")

	o := ingestOccupancyCmd.Flags()
	o.BoolVar(&ingestAlone, "alone", false, "The user is alone")
	o.IntVar(&ingestPeople, "people", 1, "Number of people present")
	o.StringVar(&ingestRoom, "room", "", "Room the occupancy sensor reported")

	ingestCmd.AddCommand(ingestBiometricsCmd, ingestRSSICmd, ingestOccupancyCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestBiometrics(cmd *cobra.Command, args []string) error {
	sample := model.BiometricSample{
		HeartRate:      ingestHeartRate,
		HRV:            ingestHRV,
		SleepScore:     ingestSleep,
		ReadinessScore: ingestReadiness,
		Temperature:    ingestTemp,
		Timestamp:      time.Now(),
	}
	if err := validateSample(sample); err != nil {
		return err
	}
	return withDB(func(db *store.DB) error {
		if err := db.InsertBiometricSample(cmd.Context(), sample); err != nil {
			return err
		}
		audit.NewDBSink(db, nil).Log(audit.CategoryBiometrics, "ingest", map[string]any{"source": "cli"})
		fmt.Printf("Recorded biometrics: hr=%d readiness=%d\n", sample.HeartRate, sample.ReadinessScore)
		return nil
	})
}

func validateSample(b model.BiometricSample) error {
	if b.HeartRate <= 0 {
		return fmt.Errorf("heart rate must be positive, got %d", b.HeartRate)
	}
	for name, v := range map[string]int{"sleep": b.SleepScore, "readiness": b.ReadinessScore} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s score must be in [0,100], got %d", name, v)
		}
	}
	return nil
}

func runIngestRSSI(cmd *cobra.Command, args []string) error {
	readings, err := parseReadings(args)
	if err != nil {
		return err
	}
	return withDB(func(db *store.DB) error {
		if err := db.InsertRSSIFrame(cmd.Context(), readings, ingestMotion); err != nil {
			return err
		}
		fmt.Printf("Recorded %d beacon reading(s)\n", len(readings))
		return nil
	})
}

// parseReadings turns "beacon=strength" arguments into a SignalReading.
func parseReadings(args []string) (model.SignalReading, error) {
	readings := make(model.SignalReading, len(args))
	for _, arg := range args {
		id, raw, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid reading %q (want beacon=strength)", arg)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid strength in %q: %w", arg, err)
		}
		readings[id] = v
	}
	return readings, nil
}

func runIngestOccupancy(cmd *cobra.Command, args []string) error {
	if ingestPeople < 0 {
		return fmt.Errorf("people must not be negative, got %d", ingestPeople)
	}
	occ := model.Occupancy{UserAlone: ingestAlone, PeopleCount: ingestPeople, Room: ingestRoom}
	return withDB(func(db *store.DB) error {
		if err := db.InsertOccupancy(cmd.Context(), occ); err != nil {
			return err
		}
		fmt.Printf("Recorded occupancy: alone=%t people=%d\n", occ.UserAlone, occ.PeopleCount)
		return nil
	})
}

// withDB opens the configured database for the duration of fn.
func withDB(fn func(db *store.DB) error) error {
	_, db, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}
