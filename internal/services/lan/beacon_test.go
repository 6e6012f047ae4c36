package lan

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/metrics"
)

// receiver listens on a loopback UDP port standing in for the broadcast
// address.
func receiver(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readDatagram(t *testing.T, conn *net.UDPConn, timeout time.Duration) string {
	t.Helper()
	buf := make([]byte, 1500)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestPayload(t *testing.T) {
	assert.Equal(t, "[MOTD]Hello[/MOTD][AD]9099[/AD]", string(Payload("Hello", 9099)))
	assert.Equal(t, "[MOTD]§aRemote Velocity proxy[/MOTD][AD]25565[/AD]", string(Payload("§aRemote Velocity proxy", 25565)))
}

func TestNewAppliesDefaults(t *testing.T) {
	b := New(Config{ListenPort: 9099, Interval: -5}, logging.Discard(), metrics.New())

	assert.Equal(t, config.DefaultMOTD, b.cfg.MOTD)
	assert.Equal(t, time.Second, b.cfg.Interval)
	assert.Equal(t, "255.255.255.255:4445", b.Destination())
	assert.Equal(t, "[MOTD]Minecraft Proxy[/MOTD][AD]9099[/AD]", string(b.Payload()))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Local.ListenPort = 9099
	cfg.LAN.MOTD = "Hello"
	cfg.LAN.AnnounceIntervalMs = 1500

	bc := FromConfig(cfg)
	assert.Equal(t, "Hello", bc.MOTD)
	assert.Equal(t, 9099, bc.ListenPort)
	assert.Equal(t, 1500*time.Millisecond, bc.Interval)
	assert.Equal(t, config.DefaultBroadcastAddress, bc.BroadcastAddress)
	assert.Equal(t, config.DefaultBroadcastPort, bc.BroadcastPort)
}

func TestBeaconSendsImmediatelyAndRepeatedly(t *testing.T) {
	rx := receiver(t)
	reg := metrics.New()
	b := New(Config{
		MOTD:             "Hello",
		ListenPort:       9099,
		BroadcastAddress: "127.0.0.1",
		BroadcastPort:    rx.LocalAddr().(*net.UDPAddr).Port,
		Interval:         20 * time.Millisecond,
	}, logging.Discard(), reg)

	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "[MOTD]Hello[/MOTD][AD]9099[/AD]", readDatagram(t, rx, 2*time.Second))
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(reg.BeaconSent), 3.0)
	assert.True(t, b.Status().Running)
}

func TestBeaconFirstTickIsImmediate(t *testing.T) {
	rx := receiver(t)
	b := New(Config{
		MOTD:             "Hello",
		ListenPort:       9099,
		BroadcastAddress: "127.0.0.1",
		BroadcastPort:    rx.LocalAddr().(*net.UDPAddr).Port,
		Interval:         time.Hour,
	}, logging.Discard(), metrics.New())

	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	assert.Equal(t, "[MOTD]Hello[/MOTD][AD]9099[/AD]", readDatagram(t, rx, time.Second))
}

func TestBeaconStartTwice(t *testing.T) {
	rx := receiver(t)
	b := New(Config{
		ListenPort:       9099,
		BroadcastAddress: "127.0.0.1",
		BroadcastPort:    rx.LocalAddr().(*net.UDPAddr).Port,
		Interval:         time.Hour,
	}, logging.Discard(), metrics.New())

	require.NoError(t, b.Start(context.Background()))
	defer b.Close()
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
}

func TestBeaconCloseIsIdempotent(t *testing.T) {
	rx := receiver(t)
	b := New(Config{
		ListenPort:       9099,
		BroadcastAddress: "127.0.0.1",
		BroadcastPort:    rx.LocalAddr().(*net.UDPAddr).Port,
		Interval:         10 * time.Millisecond,
	}, logging.Discard(), metrics.New())

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.NoError(t, b.Stop(context.Background()))
	assert.False(t, b.Status().Running)
}

func TestBeaconCloseBeforeStart(t *testing.T) {
	b := New(Config{ListenPort: 9099}, logging.Discard(), metrics.New())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
}

func TestBeaconBadAddress(t *testing.T) {
	b := New(Config{ListenPort: 9099, BroadcastAddress: "not a host name!", BroadcastPort: 4445}, logging.Discard(), metrics.New())
	assert.Error(t, b.Start(context.Background()))
	assert.False(t, b.Status().Running)
}

func TestName(t *testing.T) {
	assert.Equal(t, "lan-beacon", New(Config{}, logging.Discard(), metrics.New()).Name())
}

// flakyConn fails its first `failures` writes and then behaves normally.
type flakyConn struct {
	net.PacketConn
	failures int32
	writes   atomic.Int32
}

func (c *flakyConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if c.writes.Add(1) <= c.failures {
		return 0, errors.New("network is unreachable")
	}
	return c.PacketConn.WriteTo(p, addr)
}

func TestBeaconKeepsSendingAfterFailure(t *testing.T) {
	rx := receiver(t)
	reg := metrics.New()
	b := New(Config{
		MOTD:             "Hello",
		ListenPort:       9099,
		BroadcastAddress: "127.0.0.1",
		BroadcastPort:    rx.LocalAddr().(*net.UDPAddr).Port,
		Interval:         20 * time.Millisecond,
	}, logging.Discard(), reg, WithListen(func(ctx context.Context) (net.PacketConn, error) {
		var lc net.ListenConfig
		pc, err := lc.ListenPacket(ctx, "udp4", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		return &flakyConn{PacketConn: pc, failures: 1}, nil
	}))

	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	// The first tick fails; the following ones still arrive.
	assert.Equal(t, "[MOTD]Hello[/MOTD][AD]9099[/AD]", readDatagram(t, rx, 2*time.Second))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.BeaconErrors))
	assert.GreaterOrEqual(t, testutil.ToFloat64(reg.BeaconSent), 1.0)
	assert.True(t, b.Status().Running)
}

func TestBeaconCloseDuringFailedStart(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	b := New(Config{ListenPort: 9099, BroadcastAddress: "127.0.0.1"}, logging.Discard(), metrics.New(),
		WithListen(func(context.Context) (net.PacketConn, error) {
			close(entered)
			<-proceed
			return nil, errors.New("no socket")
		}))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Start(context.Background()) }()

	<-entered
	require.NoError(t, b.Close())
	close(proceed)
	require.Error(t, <-errCh)

	// A closed beacon stays closed.
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
	assert.False(t, b.Status().Running)
}
