// Package proxy implements the forwarding listener: it accepts game
// clients on the local port, filters them through the whitelist and relays
// each one to the remote server.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grimm.is/lanbridge/internal/bind"
	"grimm.is/lanbridge/internal/clock"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/metrics"
	"grimm.is/lanbridge/internal/ratelimit"
	"grimm.is/lanbridge/internal/relay"
	"grimm.is/lanbridge/internal/whitelist"
)

const (
	// DialTimeout bounds each connection attempt to the remote server.
	DialTimeout = 10 * time.Second
	// ShutdownGrace is how long Close waits for sessions before closing
	// their connections out from under them.
	ShutdownGrace = 5 * time.Second

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second

	// Rejection warnings per peer address per window.
	rejectLogLimit  = 5
	rejectLogWindow = time.Minute
)

// ErrIllegalState is returned by Start when the server is not Stopped.
var ErrIllegalState = errors.New("illegal state")

// State is the lifecycle state of a Server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Acquirer hands out the listening socket. *bind.Arbiter is the usual one.
type Acquirer interface {
	Acquire(ctx context.Context, port int) (net.Listener, error)
}

// DialFunc opens the outbound connection to the remote server.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config describes a forwarding listener.
type Config struct {
	ListenPort int
	RemoteHost string
	RemotePort int

	// Whitelist filters clients. Nil admits everyone.
	Whitelist *whitelist.Whitelist
	// Acquirer defaults to a bind.Arbiter without process inspection.
	Acquirer Acquirer
	// Dial defaults to a net.Dialer with DialTimeout.
	Dial DialFunc
	// Relay defaults to relay.Pipe.
	Relay relay.Func

	Logger  *logging.Logger
	Metrics *metrics.Registry
}

// Server is the forwarding listener.
type Server struct {
	listenPort int
	remoteAddr string
	whitelist  *whitelist.Whitelist
	acquirer   Acquirer
	dial       DialFunc
	relay      relay.Func
	logger     *logging.Logger
	metrics    *metrics.Registry
	grace      time.Duration
	rejectLog  *ratelimit.Limiter

	state atomic.Int32

	// ctx is cancelled by Close to ask running sessions to stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*session
	loopWG   sync.WaitGroup
	sessWG   sync.WaitGroup
}

type session struct {
	id      string
	peer    string
	started time.Time

	mu     sync.Mutex
	client *onceConn
	remote *onceConn
}

func (s *session) setRemote(c *onceConn) {
	s.mu.Lock()
	s.remote = c
	s.mu.Unlock()
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.remote != nil {
		_ = s.remote.Close()
	}
}

// onceConn closes the underlying connection on the first Close only, so the
// relay and a forced shutdown can both close a session's sockets.
type onceConn struct {
	net.Conn
	once sync.Once
	err  error
}

func newOnceConn(c net.Conn) *onceConn {
	return &onceConn{Conn: c}
}

func (c *onceConn) Close() error {
	c.once.Do(func() { c.err = c.Conn.Close() })
	return c.err
}

// CloseWrite half-closes the underlying connection when it supports that.
func (c *onceConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// NewServer creates a stopped forwarding listener.
func NewServer(cfg Config) *Server {
	s := &Server{
		listenPort: cfg.ListenPort,
		remoteAddr: net.JoinHostPort(cfg.RemoteHost, strconv.Itoa(cfg.RemotePort)),
		whitelist:  cfg.Whitelist,
		acquirer:   cfg.Acquirer,
		dial:       cfg.Dial,
		relay:      cfg.Relay,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		grace:      ShutdownGrace,
		rejectLog:  ratelimit.NewLimiter(rejectLogLimit, rejectLogWindow),
		sessions:   make(map[string]*session),
	}
	if s.logger == nil {
		s.logger = logging.WithComponent("proxy")
	}
	if s.metrics == nil {
		s.metrics = metrics.Get()
	}
	if s.acquirer == nil {
		s.acquirer = bind.NewArbiter(bind.TCPBinder{}, nil, bind.WithLogger(s.logger), bind.WithMetrics(s.metrics))
	}
	if s.dial == nil {
		d := &net.Dialer{Timeout: DialTimeout}
		s.dial = d.DialContext
	}
	if s.relay == nil {
		s.relay = relay.Pipe
	}
	if s.whitelist == nil {
		s.whitelist = whitelist.New(nil, s.logger)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the listening address, or nil before Start succeeds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveSessions returns the number of clients currently connected.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start binds the listen port and launches the accept loop. It is only
// valid on a Stopped server. If the port cannot be acquired the server goes
// back to Stopped and the acquirer's error is returned.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("%w: cannot start while %s", ErrIllegalState, s.State())
	}

	ln, err := s.acquirer.Acquire(ctx, s.listenPort)
	if err != nil {
		s.state.CompareAndSwap(int32(StateStarting), int32(StateStopped))
		return err
	}

	s.mu.Lock()
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("%w: closed while starting", ErrIllegalState)
	}
	s.listener = ln
	s.loopWG.Add(2)
	s.mu.Unlock()

	s.logger.Info("forwarding", "listen", ln.Addr().String(), "remote", s.remoteAddr, "whitelist", s.whitelist.String())
	go s.acceptLoop(ln)
	go func() {
		defer s.loopWG.Done()
		s.rejectLog.RunCleanup(s.ctx, rejectLogWindow, 10*rejectLogWindow)
	}()
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.loopWG.Done()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.State() != StateRunning {
				s.logger.Debug("accept loop stopped")
				return
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.logger.Warn("accept failed, retrying", "error", err, "delay", delay.String())
			if clock.Sleep(s.ctx, delay) != nil {
				return
			}
			continue
		}
		delay = 0

		if !s.whitelist.AllowedAddr(conn.RemoteAddr()) {
			s.metrics.ConnectionsRejected.Inc()
			s.logRejected(conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		sess := &session{
			id:      uuid.NewString(),
			peer:    conn.RemoteAddr().String(),
			started: clock.Now(),
			client:  newOnceConn(conn),
		}
		if !s.track(sess) {
			_ = conn.Close()
			return
		}
		s.metrics.ConnectionsAccepted.Inc()
		go s.handle(sess)
	}
}

// logRejected warns about a refused peer unless that address has already
// been reported too often in the current window.
func (s *Server) logRejected(peer net.Addr) {
	key := peer.String()
	if host, _, err := net.SplitHostPort(key); err == nil {
		key = host
	}
	ok, suppressed := s.rejectLog.Allow(key)
	if !ok {
		return
	}
	if suppressed > 0 {
		s.logger.Warn("rejected connection not in whitelist", "peer", peer.String(), "suppressed", suppressed)
		return
	}
	s.logger.Warn("rejected connection not in whitelist", "peer", peer.String())
}

// track registers sess while the server is running.
func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateRunning {
		return false
	}
	s.sessions[sess.id] = sess
	s.sessWG.Add(1)
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.sessWG.Done()
}

func (s *Server) handle(sess *session) {
	defer s.untrack(sess)
	log := s.logger.WithFields(map[string]any{"session": sess.id, "peer": sess.peer})
	log.Info("client connected")

	dctx, cancel := context.WithTimeout(s.ctx, DialTimeout)
	remote, err := s.dial(dctx, "tcp", s.remoteAddr)
	cancel()
	if err != nil {
		log.Warn("failed to connect to remote", "remote", s.remoteAddr, "error", err)
		s.metrics.DialFailures.Inc()
		sess.close()
		return
	}
	rc := newOnceConn(remote)
	sess.setRemote(rc)

	s.metrics.ActiveSessions.Inc()
	stats := s.relay(s.ctx, sess.client, rc)
	s.metrics.ActiveSessions.Dec()

	elapsed := clock.Since(sess.started)
	s.metrics.RecordSession(stats.Up, stats.Down, elapsed)
	if err := stats.Err(); err != nil {
		log.Debug("relay ended with error", "error", err)
	}
	log.Info("client disconnected", "up", stats.Up, "down", stats.Down, "duration", elapsed.Round(time.Millisecond).String())
}

// Close stops accepting, asks every session to stop, waits up to the
// shutdown grace period and then closes whatever is left. Calling it again
// is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	for {
		cur := s.State()
		if cur == StateClosed {
			s.mu.Unlock()
			return nil
		}
		if s.state.CompareAndSwap(int32(cur), int32(StateClosed)) {
			break
		}
	}
	ln := s.listener
	s.mu.Unlock()

	s.cancel()
	var err error
	if ln != nil {
		s.logger.Info("closing listener", "addr", ln.Addr().String())
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.loopWG.Wait()

	done := make(chan struct{})
	go func() {
		s.sessWG.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.forceClose()
	}
	return err
}

func (s *Server) forceClose() {
	s.mu.Lock()
	remaining := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		remaining = append(remaining, sess)
	}
	s.mu.Unlock()

	s.logger.Warn("sessions did not finish in time, closing", "count", len(remaining), "grace", s.grace.String())
	for _, sess := range remaining {
		sess.close()
	}
}
