// Package lan announces the forwarder to game clients on the local network
// with periodic UDP broadcasts.
package lan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/metrics"
	"grimm.is/lanbridge/internal/services"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("beacon already started")

const (
	stateIdle int32 = iota
	stateRunning
	stateClosed
)

// Config describes what to announce and where.
type Config struct {
	MOTD             string
	ListenPort       int
	BroadcastAddress string
	BroadcastPort    int
	Interval         time.Duration
}

// FromConfig builds a beacon Config from the loaded settings.
func FromConfig(cfg *config.Config) Config {
	return Config{
		MOTD:             cfg.LAN.MOTD,
		ListenPort:       cfg.Local.ListenPort,
		BroadcastAddress: cfg.LAN.BroadcastAddress,
		BroadcastPort:    cfg.LAN.BroadcastPort,
		Interval:         time.Duration(cfg.LAN.AnnounceIntervalMs) * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.MOTD) == "" {
		c.MOTD = config.DefaultMOTD
	}
	if strings.TrimSpace(c.BroadcastAddress) == "" {
		c.BroadcastAddress = config.DefaultBroadcastAddress
	}
	if c.BroadcastPort <= 0 {
		c.BroadcastPort = config.DefaultBroadcastPort
	}
	if c.Interval <= 0 {
		c.Interval = config.DefaultAnnounceInterval * time.Millisecond
	}
}

// Payload renders the announcement understood by game clients:
// [MOTD]<motd>[/MOTD][AD]<port>[/AD].
func Payload(motd string, port int) []byte {
	return []byte("[MOTD]" + motd + "[/MOTD][AD]" + strconv.Itoa(port) + "[/AD]")
}

// Beacon sends one announcement per interval until closed.
type Beacon struct {
	cfg     Config
	payload []byte
	logger  *logging.Logger
	metrics *metrics.Registry

	listen ListenFunc

	state atomic.Int32

	mu      sync.Mutex
	conn    net.PacketConn
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

var _ services.Service = (*Beacon)(nil)

// ListenFunc opens the socket announcements are sent from.
type ListenFunc func(ctx context.Context) (net.PacketConn, error)

// Option configures a Beacon.
type Option func(*Beacon)

// WithListen replaces the broadcast socket factory.
func WithListen(fn ListenFunc) Option {
	return func(b *Beacon) { b.listen = fn }
}

// listenBroadcast opens an ephemeral IPv4 UDP socket with SO_BROADCAST set.
func listenBroadcast(ctx context.Context) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: enableBroadcast}
	return lc.ListenPacket(ctx, "udp4", ":0")
}

// New returns an idle beacon. Blank or non-positive settings fall back to
// the configuration defaults.
func New(cfg Config, logger *logging.Logger, reg *metrics.Registry, opts ...Option) *Beacon {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.WithComponent("lan")
	}
	if reg == nil {
		reg = metrics.Get()
	}
	b := &Beacon{
		cfg:     cfg,
		payload: Payload(cfg.MOTD, cfg.ListenPort),
		logger:  logger,
		metrics: reg,
		listen:  listenBroadcast,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements services.Service.
func (b *Beacon) Name() string {
	return "lan-beacon"
}

// Payload returns the datagram sent on every tick.
func (b *Beacon) Payload() []byte {
	return append([]byte(nil), b.payload...)
}

// Destination returns the broadcast address and port.
func (b *Beacon) Destination() string {
	return net.JoinHostPort(b.cfg.BroadcastAddress, strconv.Itoa(b.cfg.BroadcastPort))
}

// Start opens the broadcast socket and starts announcing. The first
// announcement goes out immediately.
func (b *Beacon) Start(ctx context.Context) error {
	if !b.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyStarted
	}

	dest, err := net.ResolveUDPAddr("udp4", b.Destination())
	if err != nil {
		b.state.CompareAndSwap(stateRunning, stateIdle)
		return fmt.Errorf("failed to resolve broadcast address: %w", err)
	}

	conn, err := b.listen(ctx)
	if err != nil {
		b.state.CompareAndSwap(stateRunning, stateIdle)
		return fmt.Errorf("failed to open broadcast socket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	if b.state.Load() == stateClosed {
		b.mu.Unlock()
		cancel()
		_ = conn.Close()
		return net.ErrClosed
	}
	b.conn = conn
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	b.logger.Info("announcing on LAN", "motd", b.cfg.MOTD, "port", b.cfg.ListenPort,
		"to", dest.String(), "interval", b.cfg.Interval.String())
	go b.run(loopCtx, conn, dest, done)
	return nil
}

func (b *Beacon) run(ctx context.Context, conn net.PacketConn, dest net.Addr, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		b.send(conn, dest)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Beacon) send(conn net.PacketConn, dest net.Addr) {
	_, err := conn.WriteTo(b.payload, dest)

	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	if err != nil {
		if b.state.Load() == stateClosed {
			return
		}
		b.metrics.BeaconErrors.Inc()
		b.logger.Warn("failed to send announcement", "to", dest.String(), "error", err)
		return
	}
	b.metrics.BeaconSent.Inc()
}

// Stop implements services.Service.
func (b *Beacon) Stop(context.Context) error {
	return b.Close()
}

// Close stops the loop, waits for it and closes the socket. Repeated calls
// are no-ops.
func (b *Beacon) Close() error {
	if b.state.Swap(stateClosed) == stateClosed {
		return nil
	}

	b.mu.Lock()
	cancel, done, conn := b.cancel, b.done, b.conn
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	b.logger.Debug("beacon stopped")
	return conn.Close()
}

// Status implements services.Service.
func (b *Beacon) Status() services.ServiceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := services.ServiceStatus{
		Name:    b.Name(),
		Running: b.state.Load() == stateRunning,
	}
	if b.lastErr != nil {
		st.Error = b.lastErr.Error()
	}
	return st
}
