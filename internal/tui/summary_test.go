package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/whitelist"
)

func TestConfigSummary(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Host = "mc.example.com"
	cfg.Local.ListenPort = 9099
	wl := whitelist.New([]string{"192.168.1.0/24", "bogus"}, logging.Discard())

	out := ConfigSummary("/etc/lanbridge/lanbridge.hcl", cfg, wl, []byte("[MOTD]x[/MOTD][AD]9099[/AD]"), true)

	assert.Contains(t, out, "/etc/lanbridge/lanbridge.hcl")
	assert.Contains(t, out, "mc.example.com:25565")
	assert.Contains(t, out, "*:9099")
	assert.Contains(t, out, "192.168.1.0/24")
	assert.Contains(t, out, "skipped entries")
	assert.Contains(t, out, "[MOTD]x[/MOTD][AD]9099[/AD]")
}

func TestConfigSummaryQuiet(t *testing.T) {
	cfg := config.Default()
	wl := whitelist.New(nil, logging.Discard())

	out := ConfigSummary("lanbridge.hcl", cfg, wl, []byte("payload"), false)
	assert.Contains(t, out, "any")
	assert.NotContains(t, out, "payload")
}

func TestProblems(t *testing.T) {
	out := Problems("bad.hcl", config.ValidationErrors{
		{Field: "remote.port", Message: "must be between 1 and 65535"},
	})
	assert.Contains(t, out, "bad.hcl")
	assert.Contains(t, out, "remote.port")
	assert.Contains(t, out, "must be between 1 and 65535")
}
