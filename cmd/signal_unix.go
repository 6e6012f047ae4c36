//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

func signalStop(p *os.Process, _ string) error {
	return p.Signal(syscall.SIGTERM)
}
