// Package procdir answers "who owns this port" and "is that an earlier copy
// of us" by shelling out to the platform's connection and process tools.
//
// Every lookup degrades to "unknown" when a tool is missing, exits non-zero
// or prints something unexpected. Callers never see an error.
package procdir

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"grimm.is/lanbridge/internal/brand"
	"grimm.is/lanbridge/internal/logging"
)

// Record describes a running process.
type Record struct {
	PID         int
	Executable  string
	CommandLine string
}

// Directory is the platform boundary used by bind arbitration.
type Directory interface {
	// FindListeningOwner returns the pid of the process listening on the
	// TCP port. Sockets in any other state are ignored.
	FindListeningOwner(ctx context.Context, port int) (int, bool)
	// Describe returns the executable name and command line of pid, or false
	// if the process is gone or cannot be inspected.
	Describe(ctx context.Context, pid int) (Record, bool)
	// IsLikelySelf reports whether rec looks like another instance of this
	// program.
	IsLikelySelf(rec Record) bool
	// Terminate kills pid and reports whether that worked.
	Terminate(ctx context.Context, pid int) bool
}

// Identity is what IsLikelySelf compares against.
type Identity struct {
	// Executable is the expected process name, without any .exe suffix.
	Executable string
	// Fingerprints are command-line substrings, matched case-insensitively.
	Fingerprints []string
}

// SelfIdentity derives the identity of the running binary.
func SelfIdentity() Identity {
	name := brand.BinaryName
	if exe, err := os.Executable(); err == nil {
		name = filepath.Base(exe)
	}
	name = trimExe(name)

	fps := append([]string(nil), brand.Fingerprints...)
	if name != "" && !containsFold(fps, name) {
		fps = append(fps, name)
	}
	return Identity{Executable: name, Fingerprints: fps}
}

// Matches reports whether rec has this identity's executable name and at
// least one fingerprint in its command line.
func (id Identity) Matches(rec Record) bool {
	if !sameExecutable(id.Executable, rec.Executable) {
		return false
	}
	cmd := strings.ToLower(rec.CommandLine)
	for _, fp := range id.Fingerprints {
		if fp != "" && strings.Contains(cmd, strings.ToLower(fp)) {
			return true
		}
	}
	return false
}

// commLimit is the length Linux truncates process names to.
const commLimit = 15

func sameExecutable(want, got string) bool {
	want = strings.ToLower(trimExe(want))
	got = strings.ToLower(trimExe(filepath.Base(got)))
	if want == "" || got == "" {
		return false
	}
	if want == got {
		return true
	}
	return len(got) == commLimit && strings.HasPrefix(want, got)
}

func trimExe(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name[:len(name)-4]
	}
	return name
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// System is the Directory backed by the host's tools.
type System struct {
	goos        string
	runner      Runner
	findProcess func(pid int) (ps.Process, error)
	kill        func(ctx context.Context, r Runner, pid int) error
	self        Identity
	selfPID     int
	logger      *logging.Logger
}

// Option configures a System.
type Option func(*System)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(s *System) { s.runner = r }
}

// WithIdentity replaces the identity used by IsLikelySelf.
func WithIdentity(id Identity) Option {
	return func(s *System) { s.self = id }
}

// WithPlatform selects the command set by GOOS name ("windows" or any unix).
func WithPlatform(goos string) Option {
	return func(s *System) { s.goos = goos }
}

// WithProcessFinder replaces the go-ps lookup used by Describe.
func WithProcessFinder(f func(pid int) (ps.Process, error)) Option {
	return func(s *System) { s.findProcess = f }
}

// WithKill replaces the termination call.
func WithKill(f func(ctx context.Context, r Runner, pid int) error) Option {
	return func(s *System) { s.kill = f }
}

// New returns the Directory for the current platform.
func New(logger *logging.Logger, opts ...Option) *System {
	if logger == nil {
		logger = logging.WithComponent("procdir")
	}
	s := &System{
		goos:        runtime.GOOS,
		runner:      ExecRunner(defaultCommandTimeout),
		findProcess: ps.FindProcess,
		kill:        killProcess,
		self:        SelfIdentity(),
		selfPID:     os.Getpid(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindListeningOwner implements Directory.
func (s *System) FindListeningOwner(ctx context.Context, port int) (int, bool) {
	if s.goos == "windows" {
		return s.findWindowsOwner(ctx, port)
	}
	return s.findUnixOwner(ctx, port)
}

func (s *System) findUnixOwner(ctx context.Context, port int) (int, bool) {
	out, err := s.runner.Output(ctx, "lsof", "-nP", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-t")
	if pid, ok := firstPID(out); ok {
		return pid, true
	}
	if err != nil {
		s.logger.Debug("lsof lookup failed", "port", port, "error", err)
	}

	if s.goos != "linux" {
		return 0, false
	}
	out, err = s.runner.Output(ctx, "ss", "-H", "-l", "-t", "-n", "-p")
	if err != nil {
		s.logger.Debug("ss lookup failed", "port", port, "error", err)
		return 0, false
	}
	return parseSS(out, port)
}

func (s *System) findWindowsOwner(ctx context.Context, port int) (int, bool) {
	for _, proto := range []string{"TCP", "TCPv6"} {
		out, err := s.runner.Output(ctx, "netstat", "-ano", "-p", proto)
		if err != nil {
			s.logger.Debug("netstat lookup failed", "proto", proto, "error", err)
			continue
		}
		if pid, ok := parseNetstat(out, port); ok {
			return pid, true
		}
	}
	return 0, false
}

// Describe implements Directory.
func (s *System) Describe(ctx context.Context, pid int) (Record, bool) {
	if pid <= 0 {
		return Record{}, false
	}

	rec := Record{PID: pid}
	if s.findProcess != nil {
		p, err := s.findProcess(pid)
		switch {
		case err != nil:
			s.logger.Debug("process table lookup failed", "pid", pid, "error", err)
		case p == nil:
			s.logger.Debug("process already exited", "pid", pid)
			return Record{}, false
		default:
			rec.Executable = p.Executable()
		}
	}

	var cmdline string
	var ok bool
	if s.goos == "windows" {
		cmdline, ok = s.windowsCommandLine(ctx, pid)
	} else {
		cmdline, ok = s.unixCommandLine(ctx, pid)
	}
	if !ok && rec.Executable == "" {
		return Record{}, false
	}
	rec.CommandLine = cmdline
	if rec.Executable == "" {
		rec.Executable = executableFromCommandLine(cmdline)
	}
	return rec, true
}

func (s *System) unixCommandLine(ctx context.Context, pid int) (string, bool) {
	out, err := s.runner.Output(ctx, "ps", "-p", strconv.Itoa(pid), "-o", "args=")
	if err != nil {
		s.logger.Debug("ps lookup failed", "pid", pid, "error", err)
		return "", false
	}
	line := strings.TrimSpace(firstLine(out))
	return line, line != ""
}

func (s *System) windowsCommandLine(ctx context.Context, pid int) (string, bool) {
	out, err := s.runner.Output(ctx, "wmic", "process", "where", "processid="+strconv.Itoa(pid),
		"get", "CommandLine", "/format:list")
	if err != nil {
		s.logger.Debug("wmic lookup failed", "pid", pid, "error", err)
		return "", false
	}
	return parseWmicValue(out, "CommandLine")
}

// IsLikelySelf implements Directory.
func (s *System) IsLikelySelf(rec Record) bool {
	return s.self.Matches(rec)
}

// Terminate implements Directory. It never kills the calling process.
func (s *System) Terminate(ctx context.Context, pid int) bool {
	if pid <= 0 || pid == s.selfPID {
		s.logger.Warn("refusing to terminate process", "pid", pid)
		return false
	}
	if err := s.kill(ctx, s.runner, pid); err != nil {
		s.logger.Warn("failed to terminate process", "pid", pid, "error", err)
		return false
	}
	return true
}
