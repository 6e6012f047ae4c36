package config

// Default values applied to missing or non-positive settings.
const (
	DefaultRemoteHost       = "localhost"
	DefaultRemotePort       = 25565
	DefaultListenPort       = 25565
	DefaultMOTD             = "Minecraft Proxy"
	DefaultGameVersion      = "1.20.x"
	DefaultMaxPlayers       = 20
	DefaultAnnounceInterval = 1000
	DefaultBroadcastPort    = 4445
	DefaultBroadcastAddress = "255.255.255.255"
	DefaultLogLevel         = "info"
	maxPort                 = 65535
	minPort                 = 1
)

// Config is the settings record consumed by the forwarder and the beacon.
// Every block is optional in the file; ApplyDefaults fills what is missing.
type Config struct {
	Remote      *Remote      `hcl:"remote,block" yaml:"remote" json:"remote,omitempty"`
	Local       *Local       `hcl:"local,block" yaml:"local" json:"local,omitempty"`
	LAN         *LAN         `hcl:"lan,block" yaml:"lan" json:"lan,omitempty"`
	Security    *Security    `hcl:"security,block" yaml:"security" json:"security,omitempty"`
	Credentials *Credentials `hcl:"credentials,block" yaml:"credentials" json:"credentials,omitempty"`
	Logging     *Logging     `hcl:"logging,block" yaml:"logging" json:"logging,omitempty"`
	Metrics     *Metrics     `hcl:"metrics,block" yaml:"metrics" json:"metrics,omitempty"`
}

// Remote is the upstream game server every accepted connection is forwarded to.
type Remote struct {
	Host string `hcl:"host,optional" yaml:"host" json:"host"`
	Port int    `hcl:"port,optional" yaml:"port" json:"port"`
}

// Local describes the forwarding listener.
type Local struct {
	ListenPort int `hcl:"listen_port,optional" yaml:"listenPort" json:"listen_port"`
	// BindAddress restricts the listener to one local address. Empty means all.
	BindAddress string `hcl:"bind_address,optional" yaml:"bindAddress" json:"bind_address,omitempty"`
}

// LAN configures the discovery beacon.
// Version and MaxPlayers are accepted for compatibility with existing
// configuration files but are not part of the announcement.
type LAN struct {
	MOTD               string `hcl:"motd,optional" yaml:"motd" json:"motd"`
	Version            string `hcl:"version,optional" yaml:"version" json:"version"`
	MaxPlayers         int    `hcl:"max_players,optional" yaml:"maxPlayers" json:"max_players"`
	AnnounceIntervalMs int64  `hcl:"announce_interval_ms,optional" yaml:"announceIntervalMs" json:"announce_interval_ms"`
	BroadcastPort      int    `hcl:"broadcast_port,optional" yaml:"broadcastPort" json:"broadcast_port"`
	BroadcastAddress   string `hcl:"broadcast_address,optional" yaml:"broadcastAddress" json:"broadcast_address"`
}

// Security holds the client allow-list. An empty list, or one containing
// "any" or "*", admits every client.
type Security struct {
	Whitelist StringList `hcl:"whitelist,optional" yaml:"whitelist" json:"whitelist"`
}

// Credentials are carried for remote proxies that expect a token.
type Credentials struct {
	Enabled bool   `hcl:"enabled,optional" yaml:"enabled" json:"enabled"`
	Token   string `hcl:"token,optional" yaml:"token" json:"token,omitempty"`
}

// Logging controls the log level and output format.
type Logging struct {
	Level string `hcl:"level,optional" yaml:"level" json:"level"`
	JSON  bool   `hcl:"json,optional" yaml:"json" json:"json"`
}

// Metrics enables the Prometheus endpoint when Listen is set.
type Metrics struct {
	Listen string `hcl:"listen,optional" yaml:"listen" json:"listen,omitempty"`
}

// StringList is a list of strings that also accepts a single scalar in YAML.
type StringList []string

// UnmarshalYAML accepts either a sequence or a single string.
func (s *StringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := unmarshal(&single); err != nil {
		return err
	}
	if single == "" {
		*s = nil
		return nil
	}
	*s = StringList{single}
	return nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every missing block and value. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Remote == nil {
		c.Remote = &Remote{}
	}
	if c.Remote.Host == "" {
		c.Remote.Host = DefaultRemoteHost
	}
	if c.Remote.Port == 0 {
		c.Remote.Port = DefaultRemotePort
	}

	if c.Local == nil {
		c.Local = &Local{}
	}
	if c.Local.ListenPort == 0 {
		c.Local.ListenPort = DefaultListenPort
	}

	if c.LAN == nil {
		c.LAN = &LAN{}
	}
	c.LAN.applyDefaults()

	if c.Security == nil {
		c.Security = &Security{}
	}
	if c.Credentials == nil {
		c.Credentials = &Credentials{}
	}
	if c.Logging == nil {
		c.Logging = &Logging{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Metrics == nil {
		c.Metrics = &Metrics{}
	}
}

func (l *LAN) applyDefaults() {
	if l.MOTD == "" {
		l.MOTD = DefaultMOTD
	}
	if l.Version == "" {
		l.Version = DefaultGameVersion
	}
	if l.MaxPlayers <= 0 {
		l.MaxPlayers = DefaultMaxPlayers
	}
	if l.AnnounceIntervalMs <= 0 {
		l.AnnounceIntervalMs = DefaultAnnounceInterval
	}
	if l.BroadcastPort == 0 {
		l.BroadcastPort = DefaultBroadcastPort
	}
	if isBlank(l.BroadcastAddress) {
		l.BroadcastAddress = DefaultBroadcastAddress
	}
}

// WhitelistEnabled reports whether any allow-list entries are configured.
func (c *Config) WhitelistEnabled() bool {
	return c.Security != nil && len(c.Security.Whitelist) > 0
}
