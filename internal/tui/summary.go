package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/whitelist"
)

// Row is one label/value line of a card.
type Row struct {
	Label string
	Value string
	Warn  bool
}

// Card renders a titled box of rows.
func Card(title string, rows []Row) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, StyleTitle.Render(title))
	for _, r := range rows {
		value := StyleValue.Render(r.Value)
		if r.Warn {
			value = StyleStatusWarn.Render(r.Value)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, StyleLabel.Render(r.Label), value))
	}
	return StyleCard.Render(strings.Join(lines, "\n"))
}

// ConfigSummary renders the effective settings of cfg. With verbose set it
// also lists every whitelist rule and the exact beacon payload.
func ConfigSummary(path string, cfg *config.Config, wl *whitelist.Whitelist, payload []byte, verbose bool) string {
	forward := []Row{
		{Label: "listen", Value: listenAddr(cfg)},
		{Label: "remote", Value: cfg.Remote.Host + ":" + strconv.Itoa(cfg.Remote.Port)},
		{Label: "whitelist", Value: wl.String(), Warn: wl.AllowAll()},
	}
	if skipped := len(wl.Skipped()); skipped > 0 {
		forward = append(forward, Row{Label: "skipped entries", Value: strconv.Itoa(skipped), Warn: true})
	}
	if verbose {
		for i, r := range wl.Rules() {
			forward = append(forward, Row{Label: "  rule " + strconv.Itoa(i+1), Value: r.String()})
		}
		for _, err := range wl.Skipped() {
			forward = append(forward, Row{Label: "  skipped", Value: err.Error(), Warn: true})
		}
	}

	beacon := []Row{
		{Label: "motd", Value: cfg.LAN.MOTD},
		{Label: "broadcast", Value: cfg.LAN.BroadcastAddress + ":" + strconv.Itoa(cfg.LAN.BroadcastPort)},
		{Label: "interval", Value: strconv.FormatInt(cfg.LAN.AnnounceIntervalMs, 10) + " ms"},
		{Label: "version", Value: cfg.LAN.Version},
		{Label: "max players", Value: strconv.Itoa(cfg.LAN.MaxPlayers)},
	}
	if verbose {
		beacon = append(beacon, Row{Label: "payload", Value: string(payload)})
	}

	misc := []Row{
		{Label: "log level", Value: cfg.Logging.Level},
		{Label: "metrics", Value: orDash(cfg.Metrics.Listen)},
		{Label: "credentials", Value: enabled(cfg.Credentials.Enabled)},
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		StyleStatusGood.Render("✓ ")+StyleSubtitle.Render(path),
		Card("Forwarding", forward),
		Card("LAN announcement", beacon),
		Card("Runtime", misc),
	)
}

// Problems renders validation failures.
func Problems(path string, errs config.ValidationErrors) string {
	lines := []string{StyleStatusBad.Render("✗ ") + StyleSubtitle.Render(path)}
	for _, e := range errs {
		lines = append(lines, StyleStatusBad.Render("  • ")+StyleLabel.Render(e.Field)+StyleValue.Render(e.Message))
	}
	return strings.Join(lines, "\n")
}

func listenAddr(cfg *config.Config) string {
	host := cfg.Local.BindAddress
	if host == "" {
		host = "*"
	}
	return host + ":" + strconv.Itoa(cfg.Local.ListenPort)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
