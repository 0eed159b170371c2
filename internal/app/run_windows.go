//go:build windows

package app

import "os"

var shutdownSignals = []os.Signal{os.Interrupt}

// terminate kills the process; Windows has no SIGTERM equivalent.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// processAlive relies on FindProcess opening a handle, which fails for
// exited processes on Windows.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
