//go:build !windows

package procdir

import (
	"context"

	"golang.org/x/sys/unix"
)

func killProcess(_ context.Context, _ Runner, pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
