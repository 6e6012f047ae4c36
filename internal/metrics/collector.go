package metrics

import (
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"

	"grimm.is/lanbridge/internal/clock"
	"grimm.is/lanbridge/internal/logging"
)

// Collector periodically refreshes the uptime gauge and logs a traffic
// summary built from the registry.
type Collector struct {
	registry *Registry
	logger   *logging.Logger
	interval time.Duration
	clock    clock.Clock
	started  time.Time
	stopCh   chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	lastUpdate time.Time
	stats      Stats
}

// Stats is a point-in-time summary of the forwarder and beacon counters.
type Stats struct {
	Uptime         time.Duration `json:"uptime"`
	Accepted       uint64        `json:"accepted"`
	Rejected       uint64        `json:"rejected"`
	DialFailures   uint64        `json:"dial_failures"`
	ActiveSessions int64         `json:"active_sessions"`
	BytesUp        uint64        `json:"bytes_up"`
	BytesDown      uint64        `json:"bytes_down"`
	BeaconSent     uint64        `json:"beacon_sent"`
	BeaconErrors   uint64        `json:"beacon_errors"`
}

// NewCollector creates a new metrics collector. A nil registry means Get().
func NewCollector(registry *Registry, logger *logging.Logger, interval time.Duration) *Collector {
	if registry == nil {
		registry = Get()
	}
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	return &Collector{
		registry: registry,
		logger:   logger,
		interval: interval,
		clock:    clock.Real(),
		started:  clock.Now(),
		stopCh:   make(chan struct{}),
	}
}

// Start runs the collection loop until Stop is called.
func (c *Collector) Start() {
	c.logger.Debug("Starting metrics collector", "interval", c.interval.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := c.Collect()
			c.logger.Info("traffic summary",
				"uptime", s.Uptime.Round(time.Second).String(),
				"active", s.ActiveSessions,
				"accepted", s.Accepted,
				"rejected", s.Rejected,
				"dial_failures", s.DialFailures,
				"bytes_up", s.BytesUp,
				"bytes_down", s.BytesDown,
				"beacons", s.BeaconSent)
		case <-c.stopCh:
			c.logger.Debug("Stopping metrics collector")
			return
		}
	}
}

// Stop stops the collection loop. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Collect refreshes the uptime gauge and the cached Stats.
func (c *Collector) Collect() Stats {
	uptime := c.clock.Since(c.started)
	c.registry.Uptime.Set(uptime.Seconds())

	s := Stats{Uptime: uptime}
	families, err := c.registry.Gatherer().Gather()
	if err != nil {
		c.logger.Warn("Failed to gather metrics", "error", err)
	}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_connections_accepted_total":
			s.Accepted = counterValue(mf)
		case namespace + "_connections_rejected_total":
			s.Rejected = counterValue(mf)
		case namespace + "_remote_dial_failures_total":
			s.DialFailures = counterValue(mf)
		case namespace + "_sessions_active":
			for _, m := range mf.GetMetric() {
				s.ActiveSessions = int64(m.GetGauge().GetValue())
			}
		case namespace + "_relay_bytes_total":
			for _, m := range mf.GetMetric() {
				v := uint64(m.GetCounter().GetValue())
				switch labelValue(m, "direction") {
				case "up":
					s.BytesUp = v
				case "down":
					s.BytesDown = v
				}
			}
		case namespace + "_beacon_sent_total":
			s.BeaconSent = counterValue(mf)
		case namespace + "_beacon_errors_total":
			s.BeaconErrors = counterValue(mf)
		}
	}

	c.mu.Lock()
	c.stats = s
	c.lastUpdate = c.clock.Now()
	c.mu.Unlock()
	return s
}

// GetStats returns the result of the most recent Collect.
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// GetLastUpdate returns when Collect last ran.
func (c *Collector) GetLastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

func counterValue(mf *dto.MetricFamily) uint64 {
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return uint64(total)
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
