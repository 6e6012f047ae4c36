//go:build windows

package cmd

import "os"

// Console processes on Windows cannot receive SIGTERM. The instance is
// killed outright and cannot clean up its own PID file.
func signalStop(p *os.Process, pidFile string) error {
	if err := p.Kill(); err != nil {
		return err
	}
	os.Remove(pidFile)
	return nil
}
