// Package relay copies bytes between two connections until both directions
// have finished.
package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BufferSize is the size of each direction's copy buffer.
const BufferSize = 16 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, BufferSize)
		return &b
	},
}

// Stats is the outcome of one relayed session. Up is client to remote,
// Down is remote to client. A clean end of stream leaves the error nil.
type Stats struct {
	Up      int64
	Down    int64
	UpErr   error
	DownErr error
}

// Err returns the first non-nil direction error.
func (s Stats) Err() error {
	if s.UpErr != nil {
		return s.UpErr
	}
	return s.DownErr
}

type flusher interface {
	Flush() error
}

type closeWriter interface {
	CloseWrite() error
}

// Func is the signature of Pipe, for callers that want to substitute it.
type Func func(ctx context.Context, client, remote net.Conn) Stats

// Pipe relays client<->remote. Each direction runs until its source ends or
// fails. An error ends only that direction and is recorded in Stats; like
// end of stream it half-closes the opposite write side while the other
// direction keeps running to its own end. Cancelling ctx stops both by
// expiring their read deadlines. Pipe closes both connections exactly once
// before returning.
func Pipe(ctx context.Context, client, remote net.Conn) Stats {
	var s Stats
	var g errgroup.Group

	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = client.SetReadDeadline(now)
		_ = remote.SetReadDeadline(now)
	})

	g.Go(func() error {
		s.Up, s.UpErr = copyHalf(remote, client)
		return nil
	})
	g.Go(func() error {
		s.Down, s.DownErr = copyHalf(client, remote)
		return nil
	})
	_ = g.Wait()
	stop()

	_ = client.Close()
	_ = remote.Close()
	return s
}

// copyHalf copies src to dst until src ends or either side fails, then
// half-closes dst.
func copyHalf(dst io.Writer, src io.Reader) (written int64, err error) {
	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)
	buf := *bp

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 || nw > nr {
				nw = 0
				if werr == nil {
					werr = errors.New("invalid write result")
				}
			}
			written += int64(nw)
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr == nil {
				if f, ok := dst.(flusher); ok {
					werr = f.Flush()
				}
			}
			if werr != nil {
				err = werr
				break
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				err = rerr
			}
			break
		}
	}

	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	return written, err
}
