package bind

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrAddrInUse marks a bind that failed because the port is occupied.
	ErrAddrInUse = errors.New("address already in use")

	// ErrBindExhausted is matched by every *ExhaustedError.
	ErrBindExhausted = errors.New("bind retries exhausted")
)

// IsAddrInUse reports whether err is an "address already in use" failure
// (EADDRINUSE on unix, WSAEADDRINUSE on windows).
func IsAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAddrInUse) || isAddrInUseErrno(err)
}

// ExhaustedError is returned when every retry found the port still occupied.
type ExhaustedError struct {
	Port     int
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "port %d is still in use after %d retries", e.Port, e.Attempts)
	if e.Last != nil {
		fmt.Fprintf(&b, " (last error: %v)", e.Last)
	}
	b.WriteString("\n  find the process holding it with: ")
	b.WriteString(findCommand(runtime.GOOS, e.Port))
	b.WriteString("\n  or choose another port with local.listen_port in the configuration file")
	b.WriteString("\n  an earlier lanbridge instance may still be running; stop it with 'lanbridge stop'")
	b.WriteString("\n  a recently closed listener can hold the port in TIME_WAIT for 2-4 minutes")
	return b.String()
}

// Unwrap exposes both ErrBindExhausted and the last bind failure.
func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrBindExhausted}
	}
	return []error{ErrBindExhausted, e.Last}
}

func findCommand(goos string, port int) string {
	if goos == "windows" {
		return fmt.Sprintf("netstat -ano | findstr :%d", port)
	}
	return fmt.Sprintf("lsof -nP -iTCP:%d -sTCP:LISTEN", port)
}
