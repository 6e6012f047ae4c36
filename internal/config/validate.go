package config

import (
	"fmt"
	"net"
	"strings"

	"grimm.is/lanbridge/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks a defaulted configuration. Whitelist entries are not
// checked here: malformed entries are skipped with a warning at startup.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Remote == nil || c.Local == nil || c.LAN == nil || c.Logging == nil {
		add("config", "defaults not applied")
		return errs
	}

	if isBlank(c.Remote.Host) {
		add("remote.host", "must not be empty")
	}
	if !validPort(c.Remote.Port) {
		add("remote.port", "%d is not a valid port", c.Remote.Port)
	}
	if !validPort(c.Local.ListenPort) {
		add("local.listen_port", "%d is not a valid port", c.Local.ListenPort)
	}
	if c.Local.BindAddress != "" && net.ParseIP(c.Local.BindAddress) == nil {
		add("local.bind_address", "%q is not an IP address", c.Local.BindAddress)
	}
	if !validPort(c.LAN.BroadcastPort) {
		add("lan.broadcast_port", "%d is not a valid port", c.LAN.BroadcastPort)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	if c.Metrics != nil && c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			add("metrics.listen", "%v", err)
		}
	}
	if c.Credentials != nil && c.Credentials.Enabled && c.Credentials.Token == "" {
		add("credentials.token", "must be set when credentials are enabled")
	}

	return errs
}

func validPort(p int) bool {
	return p >= minPort && p <= maxPort
}
