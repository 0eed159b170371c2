package loop

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Notify sends a desktop notification for the event. On macOS it uses
// osascript, on Linux notify-send. Without either it writes to stderr.
func Notify(ev Event) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "homepilot" subtitle %q`, ev.Message, ev.Title)
		if err := exec.Command("osascript", "-e", script).Run(); err == nil {
			return nil
		}
	case "linux":
		if _, err := exec.LookPath("notify-send"); err == nil {
			if err := exec.Command("notify-send", "homepilot: "+ev.Title, ev.Message).Run(); err == nil {
				return nil
			}
		}
	}
	return notifyText(os.Stderr, ev)
}

func notifyText(w io.Writer, ev Event) error {
	_, err := fmt.Fprintf(w, "[%s] %s: %s\n", ev.Level, ev.Title, ev.Message)
	return err
}
