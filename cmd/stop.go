package cmd

import (
	"fmt"
	"os"
	"time"

	"grimm.is/lanbridge/internal/brand"
	"grimm.is/lanbridge/internal/i18n"
)

const (
	stopPollInterval = 100 * time.Millisecond
	stopPollAttempts = 50
)

// RunStop asks the instance recorded in the PID file to shut down and waits
// for it to remove the file.
func RunStop() error {
	pidFile := brand.GetPIDFile()
	pid, err := readPIDFile(pidFile)
	if err != nil {
		Printer.Fprintf(os.Stderr, i18n.MsgNotRunning, err)
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		err = fmt.Errorf("failed to find process %d: %w", pid, err)
		Printer.Fprintf(os.Stderr, i18n.MsgNotRunning, err)
		return err
	}
	if err := signalStop(process, pidFile); err != nil {
		// Stale PID file from a crashed instance.
		os.Remove(pidFile)
		err = fmt.Errorf("failed to signal process %d: %w", pid, err)
		Printer.Fprintf(os.Stderr, i18n.MsgNotRunning, err)
		return err
	}
	Printer.Printf(i18n.MsgStopSent, pid)

	for i := 0; i < stopPollAttempts; i++ {
		if _, err := os.Stat(pidFile); os.IsNotExist(err) {
			Printer.Printf(i18n.MsgStopped)
			return nil
		}
		time.Sleep(stopPollInterval)
	}

	Printer.Fprintf(os.Stderr, i18n.MsgStopTimeout, pid)
	return fmt.Errorf("process %d did not exit", pid)
}
