package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/config"
	"github.com/blackwell-systems/homepilot/internal/loop"
	"github.com/blackwell-systems/homepilot/internal/output"
)

var (
	runDaemon bool
	runStop   bool
	runQuiet  bool
	runNotify bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop and publish changes",
	Long: `Run the control loop. Each cycle reads the newest sensor data, updates
the room estimate and user state, rebuilds the agenda, and publishes what
changed to the automation bus (or the log when no bus is configured). The
next cycle is scheduled by the current state: every 5s when FOCUSED, every
60s when SLEEPING.

Examples:
  homepilot run                 # foreground, ctrl-c to stop
  homepilot run --notify        # also send desktop notifications
  homepilot run --daemon        # write a PID file and log to run.log
  homepilot run --stop          # stop the background daemon`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	runCmd.Flags().BoolVar(&runStop, "stop", false, "Stop a running background daemon")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress terminal output")
	runCmd.Flags().BoolVar(&runNotify, "notify", false, "Send desktop notifications for state and agenda changes")
	rootCmd.AddCommand(runCmd)
}

func pidFilePath() string { return filepath.Join(config.ConfigDir(), "run.pid") }
func logFilePath() string { return filepath.Join(config.ConfigDir(), "run.log") }

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runStop {
		return stopDaemon()
	}

	logger := slog.Default()
	var out io.Writer = os.Stdout
	if runQuiet {
		out = io.Discard
	}

	if runDaemon {
		cleanup, logFile, err := startDaemon()
		if err != nil {
			return err
		}
		defer cleanup()
		logger = slog.New(slog.NewTextHandler(logFile, nil))
		out = io.Discard
	}

	svc, err := openServices(logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r := loop.New(svc.gatherer, svc.engine, svc.planner, svc.pub, svc.sink, logger)
	if runNotify {
		r.NotifyWith(loop.Notify)
	}
	r.OnCycle(func(res loop.CycleResult) {
		printCycle(out, res)
	})

	fmt.Fprintf(out, "homepilot running (bus: %s)\n", busLabel(svc.cfg.Bus.URL))
	logger.Info("control loop started", "pid", os.Getpid())
	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "\nStopped.")
		logger.Info("control loop stopped")
		return nil
	}
	return err
}

func busLabel(url string) string {
	if url == "" {
		return "log"
	}
	return url
}

// printCycle writes a one-line summary per cycle plus any events.
func printCycle(w io.Writer, res loop.CycleResult) {
	ts := res.Time.Local().Format("15:04:05")
	if res.Skipped {
		fmt.Fprintf(w, "[%s] %s no biometric sample, keeping %s\n", ts, output.StyleWarning.Render("!"), res.NextInterval)
		return
	}
	fmt.Fprintf(w, "[%s] %s %s (%.2f)  next in %s\n", ts,
		output.StateStyle(res.State), res.Location.Room, res.Location.Confidence, res.NextInterval)
	for _, ev := range res.Events {
		fmt.Fprintf(w, "         %s %s: %s\n", eventIcon(ev.Level), ev.Title, ev.Message)
	}
}

func eventIcon(level string) string {
	switch level {
	case "warning":
		return output.StyleWarning.Render("⚠")
	default:
		return output.StyleSuccess.Render("✓")
	}
}

// startDaemon writes the PID file and opens the log file. The returned
// cleanup removes the PID file and closes the log.
func startDaemon() (func(), *os.File, error) {
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating config dir: %w", err)
	}
	if pid, err := readPID(); err == nil {
		if processAlive(pid) {
			return nil, nil, fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		_ = os.Remove(pidFilePath())
	}

	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, nil, fmt.Errorf("writing PID file: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = os.Remove(pidFilePath())
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	fmt.Fprintf(logFile, "[%s] daemon started (PID %d)\n", time.Now().Format(time.DateTime), os.Getpid())

	cleanup := func() {
		_ = os.Remove(pidFilePath())
		_ = logFile.Close()
	}
	return cleanup, logFile, nil
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// stopDaemon signals the daemon named in the PID file.
func stopDaemon() error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("no daemon running (could not read PID file: %v)", err)
	}
	if !processAlive(pid) {
		_ = os.Remove(pidFilePath())
		return fmt.Errorf("no daemon running (PID %d is not active, cleaned up stale PID file)", pid)
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("failed to stop daemon (PID %d): %w", pid, err)
	}
	_ = os.Remove(pidFilePath())
	fmt.Printf("Stopped daemon (PID %d)\n", pid)
	return nil
}
