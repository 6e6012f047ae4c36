//go:build windows

package bind

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isAddrInUseErrno(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
