package procdir

import (
	"context"
	"os/exec"
	"time"
)

const defaultCommandTimeout = 5 * time.Second

// Runner runs an external command and returns its standard output.
// A non-zero exit is reported as an error alongside whatever was printed.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct {
	timeout time.Duration
}

// ExecRunner returns a Runner backed by os/exec. Each command is killed
// after timeout.
func ExecRunner(timeout time.Duration) Runner {
	return execRunner{timeout: timeout}
}

func (r execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, path, args...).Output()
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Output implements Runner.
func (f RunnerFunc) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}
