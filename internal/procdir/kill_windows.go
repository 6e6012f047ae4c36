//go:build windows

package procdir

import (
	"context"
	"strconv"
)

func killProcess(ctx context.Context, r Runner, pid int) error {
	_, err := r.Output(ctx, "taskkill", "/F", "/PID", strconv.Itoa(pid))
	return err
}
