package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Template returns a commented HCL configuration with example values.
func Template() []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	comment(root, "Upstream game server (or proxy) that clients are forwarded to.")
	remote := root.AppendNewBlock("remote", nil).Body()
	remote.SetAttributeValue("host", cty.StringVal("proxy.example.com"))
	remote.SetAttributeValue("port", cty.NumberIntVal(DefaultRemotePort))
	root.AppendNewline()

	comment(root, "Local port that LAN clients connect to.")
	local := root.AppendNewBlock("local", nil).Body()
	local.SetAttributeValue("listen_port", cty.NumberIntVal(9099))
	root.AppendNewline()

	comment(root, "Discovery beacon. version and max_players are informational only.")
	lan := root.AppendNewBlock("lan", nil).Body()
	lan.SetAttributeValue("motd", cty.StringVal("&aRemote Velocity proxy"))
	lan.SetAttributeValue("version", cty.StringVal("1.21.10"))
	lan.SetAttributeValue("max_players", cty.NumberIntVal(DefaultMaxPlayers))
	lan.SetAttributeValue("announce_interval_ms", cty.NumberIntVal(DefaultAnnounceInterval))
	lan.SetAttributeValue("broadcast_port", cty.NumberIntVal(DefaultBroadcastPort))
	lan.SetAttributeValue("broadcast_address", cty.StringVal(DefaultBroadcastAddress))
	root.AppendNewline()

	comment(root, "Allowed client ranges in CIDR notation. Empty, \"any\" or \"*\" admits everyone.")
	security := root.AppendNewBlock("security", nil).Body()
	comment(security, `whitelist = ["192.168.0.0/24", "fd00::/8"]`)
	security.SetAttributeValue("whitelist", cty.ListValEmpty(cty.String))
	root.AppendNewline()

	credentials := root.AppendNewBlock("credentials", nil).Body()
	credentials.SetAttributeValue("enabled", cty.False)
	credentials.SetAttributeValue("token", cty.StringVal(""))
	root.AppendNewline()

	logging := root.AppendNewBlock("logging", nil).Body()
	logging.SetAttributeValue("level", cty.StringVal(DefaultLogLevel))
	logging.SetAttributeValue("json", cty.False)
	root.AppendNewline()

	comment(root, "Prometheus metrics endpoint, disabled when empty.")
	metrics := root.AppendNewBlock("metrics", nil).Body()
	metrics.SetAttributeValue("listen", cty.StringVal(""))

	return hclwrite.Format(f.Bytes())
}

// WriteTemplate writes Template to path, creating parent directories. It
// refuses to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, Template(), 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

func comment(body *hclwrite.Body, text string) {
	body.AppendUnstructuredTokens(hclwrite.Tokens{
		{Type: hclsyntax.TokenComment, Bytes: []byte("# " + text + "\n")},
	})
}
