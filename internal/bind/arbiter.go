// Package bind acquires the forwarder's listening socket, resolving
// "address in use" conflicts left behind by an earlier run.
package bind

import (
	"context"
	"net"
	"strconv"
	"time"

	"grimm.is/lanbridge/internal/clock"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/metrics"
	"grimm.is/lanbridge/internal/procdir"
)

// Binder opens a TCP listener on a port.
type Binder interface {
	Bind(ctx context.Context, port int) (net.Listener, error)
}

// TCPBinder binds with net.ListenConfig on Address (empty means all
// interfaces).
type TCPBinder struct {
	Address string
}

// Bind implements Binder.
func (b TCPBinder) Bind(ctx context.Context, port int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", net.JoinHostPort(b.Address, strconv.Itoa(port)))
}

// Policy is a retry schedule: Attempts binds, each preceded by Delay.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

var (
	// AfterTermination is used once an earlier instance has been killed.
	AfterTermination = Policy{Attempts: 3, Delay: time.Second}
	// Passive is used when nothing was killed, typically TIME_WAIT.
	Passive = Policy{Attempts: 5, Delay: 2 * time.Second}
)

// Arbiter acquires listeners, terminating a stale copy of this program
// when it is the one holding the port.
type Arbiter struct {
	binder  Binder
	dir     procdir.Directory
	clock   clock.Clock
	logger  *logging.Logger
	metrics *metrics.Registry
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithClock sets the clock used for retry delays.
func WithClock(c clock.Clock) Option {
	return func(a *Arbiter) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Arbiter) { a.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(a *Arbiter) { a.metrics = m }
}

// NewArbiter returns an Arbiter. dir may be nil, in which case conflicts
// are only waited out.
func NewArbiter(binder Binder, dir procdir.Directory, opts ...Option) *Arbiter {
	a := &Arbiter{
		binder: binder,
		dir:    dir,
		clock:  clock.Real(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.WithComponent("bind")
	}
	if a.metrics == nil {
		a.metrics = metrics.Get()
	}
	return a
}

// Acquire binds port. When the port is taken it looks for the listening
// owner, kills it if it is an earlier lanbridge, and retries according to
// AfterTermination or Passive. Errors other than "address in use" are
// returned as they occur. Running out of retries yields *ExhaustedError.
func (a *Arbiter) Acquire(ctx context.Context, port int) (net.Listener, error) {
	ln, err := a.bind(ctx, port)
	if err == nil {
		return ln, nil
	}
	if !IsAddrInUse(err) {
		return nil, err
	}
	a.logger.Info("port in use, resolving", "port", port)

	policy := Passive
	if a.resolve(ctx, port) {
		policy = AfterTermination
		a.logger.Info("earlier instance terminated, waiting for port release", "port", port)
	} else {
		a.logger.Info("no earlier instance found, waiting for port release", "port", port)
	}

	last := err
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := a.clock.Sleep(ctx, policy.Delay); err != nil {
			return nil, err
		}
		a.logger.Info("retrying bind", "port", port, "attempt", attempt, "max", policy.Attempts)

		ln, err := a.bind(ctx, port)
		if err == nil {
			return ln, nil
		}
		if !IsAddrInUse(err) {
			return nil, err
		}
		a.logger.Debug("bind failed", "port", port, "attempt", attempt, "error", err)
		last = err
	}

	a.logger.Warn("giving up on port", "port", port, "attempts", policy.Attempts)
	return nil, &ExhaustedError{Port: port, Attempts: policy.Attempts, Last: last}
}

func (a *Arbiter) bind(ctx context.Context, port int) (net.Listener, error) {
	ln, err := a.binder.Bind(ctx, port)
	switch {
	case err == nil:
		a.metrics.RecordBindAttempt("ok")
	case IsAddrInUse(err):
		a.metrics.RecordBindAttempt("in_use")
	default:
		a.metrics.RecordBindAttempt("error")
	}
	return ln, err
}

// resolve reports whether termination of an earlier instance was attempted.
func (a *Arbiter) resolve(ctx context.Context, port int) bool {
	if a.dir == nil {
		return false
	}
	pid, ok := a.dir.FindListeningOwner(ctx, port)
	if !ok {
		a.logger.Debug("no listening owner found", "port", port)
		return false
	}
	rec, ok := a.dir.Describe(ctx, pid)
	if !ok {
		a.logger.Debug("could not inspect port owner", "port", port, "pid", pid)
		return false
	}
	if !a.dir.IsLikelySelf(rec) {
		a.logger.Info("port held by another program", "port", port, "pid", pid, "executable", rec.Executable)
		return false
	}

	a.logger.Warn("terminating earlier instance", "port", port, "pid", pid, "command", rec.CommandLine)
	if a.dir.Terminate(ctx, pid) {
		a.metrics.BindTerminations.Inc()
	} else {
		a.logger.Warn("could not terminate earlier instance", "pid", pid)
	}
	return true
}
