// Package config loads the lanbridge settings record.
//
// # Formats
//
// Configuration files may be written in HCL (preferred, lanbridge.hcl),
// YAML (the camelCase config.yaml layout) or JSON. The format is picked
// from the file extension; files without a known extension are tried as
// HCL and then YAML.
//
// # Blocks
//
//   - remote: upstream host and port
//   - local: listen_port and optional bind_address
//   - lan: discovery beacon (motd, interval, broadcast target)
//   - security: whitelist of CIDR ranges
//   - credentials: optional token for the upstream proxy
//   - logging: level and json output
//   - metrics: Prometheus listen address
//
// # Example
//
//	remote {
//	  host = "play.example.com"
//	  port = 25565
//	}
//
//	local {
//	  listen_port = 9099
//	}
//
//	security {
//	  whitelist = ["192.168.0.0/24"]
//	}
//
// Missing values are filled by [Config.ApplyDefaults]; [Locate] finds the
// file next to the executable, in the working directory or in the system
// config directory, and [WriteTemplate] produces a starting point.
package config
