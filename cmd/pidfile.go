package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// writePIDFile records the current process in path. The returned cleanup
// removes the file only if it still names this process.
func writePIDFile(path string) (cleanup func(), err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	cleanup = func() {
		if data, err := os.ReadFile(path); err == nil {
			if strings.TrimSpace(string(data)) == pid {
				os.Remove(path)
			}
		}
	}
	return cleanup, nil
}

// readPIDFile returns the pid stored in path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no PID file found at %s (is it running?)", path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file %s", path)
	}
	return pid, nil
}
