package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"grimm.is/lanbridge/internal/bind"
	"grimm.is/lanbridge/internal/brand"
	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/health"
	"grimm.is/lanbridge/internal/i18n"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/metrics"
	"grimm.is/lanbridge/internal/procdir"
	"grimm.is/lanbridge/internal/proxy"
	"grimm.is/lanbridge/internal/services"
	"grimm.is/lanbridge/internal/services/lan"
	"grimm.is/lanbridge/internal/whitelist"
)

const (
	summaryInterval = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// RunForeground loads the configuration, starts the forwarder and the LAN
// beacon and blocks until SIGINT or SIGTERM. When no configuration exists a
// template is written and RunForeground returns without starting anything.
func RunForeground(configFile string) error {
	path, err := config.Locate(configFile)
	if errors.Is(err, config.ErrNotFound) {
		if werr := config.WriteTemplate(path); werr != nil {
			werr = fmt.Errorf("failed to write configuration template: %w", werr)
			Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, werr)
			return werr
		}
		Printer.Printf(i18n.MsgTemplateWritten, path)
		Printer.Printf(i18n.MsgEditAndRerun, brand.BinaryName, path)
		return nil
	}
	if err != nil {
		Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
		return err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
		return err
	}
	logger := initializeLogging(cfg)
	logger.Info("configuration loaded", "path", path)
	logger.Debug("advertised game settings", "version", cfg.LAN.Version, "max_players", cfg.LAN.MaxPlayers)
	if cfg.Credentials.Enabled {
		Printer.Printf(i18n.MsgCredentialsInUse)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.Get()
	var metricsSrv *metrics.Server
	if cfg.Metrics.Listen != "" {
		metricsSrv, err = metrics.Listen(cfg.Metrics.Listen, reg, logger.WithComponent("metrics"))
		if err != nil {
			err = fmt.Errorf("failed to start metrics endpoint: %w", err)
			Printer.Fprintf(os.Stderr, i18n.MsgStartFailed, err)
			return err
		}
	}

	srv := newForwarder(cfg, reg, logger)
	if err := srv.Start(ctx); err != nil {
		shutdownMetrics(metricsSrv)
		Printer.Fprintf(os.Stderr, i18n.MsgStartFailed, err)
		return err
	}

	beacon := lan.New(lan.FromConfig(cfg), logger.WithComponent("lan"), reg)
	if metricsSrv != nil {
		checker := newHealthChecker(cfg, srv, beacon)
		metricsSrv.Handle("/healthz", checker.Handler())
		metricsSrv.Handle("/readyz", checker.ReadinessHandler())
		metricsSrv.Handle("/livez", health.LivenessHandler())
	}
	background := []services.Service{beacon}
	for _, svc := range background {
		if err := svc.Start(ctx); err != nil {
			logger.Error("service failed to start", "service", svc.Name(), "error", err)
		}
	}

	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Serve(); err != nil {
				logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	cleanupPID, err := writePIDFile(brand.GetPIDFile())
	if err != nil {
		logger.Warn("running without a PID file", "error", err)
	} else {
		defer cleanupPID()
	}

	collector := metrics.NewCollector(reg, logger.WithComponent("metrics"), summaryInterval)
	go collector.Start()
	defer collector.Stop()

	Printer.Printf(i18n.MsgForwarding, cfg.Local.ListenPort, cfg.Remote.Host, cfg.Remote.Port)
	Printer.Printf(i18n.MsgLANHint, cfg.LAN.MOTD)
	Printer.Printf(i18n.MsgDirectHint, cfg.Local.ListenPort)

	<-ctx.Done()
	Printer.Printf(i18n.MsgStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, svc := range background {
		if err := svc.Stop(shutdownCtx); err != nil {
			logger.Warn("service did not stop cleanly", "service", svc.Name(), "error", err)
		}
	}
	if err := srv.Close(); err != nil {
		logger.Warn("forwarder did not close cleanly", "error", err)
	}
	shutdownMetrics(metricsSrv)
	logger.Info("stopped")
	return nil
}

// newForwarder assembles the listener with bind arbitration and the
// whitelist from cfg.
func newForwarder(cfg *config.Config, reg *metrics.Registry, logger *logging.Logger) *proxy.Server {
	dir := procdir.New(logger.WithComponent("procdir"))
	arbiter := bind.NewArbiter(
		bind.TCPBinder{Address: cfg.Local.BindAddress},
		dir,
		bind.WithLogger(logger.WithComponent("bind")),
		bind.WithMetrics(reg),
	)
	wl := whitelist.New(cfg.Security.Whitelist, logger.WithComponent("whitelist"))

	return proxy.NewServer(proxy.Config{
		ListenPort: cfg.Local.ListenPort,
		RemoteHost: cfg.Remote.Host,
		RemotePort: cfg.Remote.Port,
		Whitelist:  wl,
		Acquirer:   arbiter,
		Logger:     logger.WithComponent("proxy"),
		Metrics:    reg,
	})
}

// newHealthChecker reports unhealthy while the listener is down and degraded
// while the beacon is silent or the remote refuses connections.
func newHealthChecker(cfg *config.Config, srv *proxy.Server, beacon services.Service) *health.Checker {
	checker := health.NewChecker(health.DefaultTTL)
	checker.Register("forwarder", health.Running(
		func() bool { return srv.State() == proxy.StateRunning },
		func() string { return srv.State().String() },
		health.StatusUnhealthy,
	))
	checker.Register("beacon", health.ServiceCheck(beacon, health.StatusDegraded))
	remote := net.JoinHostPort(cfg.Remote.Host, strconv.Itoa(cfg.Remote.Port))
	checker.Register("remote", health.TCPReachable(remote, 3*time.Second))
	return checker
}

func shutdownMetrics(srv *metrics.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
