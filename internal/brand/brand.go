// Package brand provides centralized branding constants.
//
// The brand identity is loaded from brand.json at compile time via go:embed.
// The same identity is used to recognise earlier instances of this program
// that may still hold the listen port.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name             string   `json:"name"`
	LowerName        string   `json:"lowerName"`
	Vendor           string   `json:"vendor"`
	Website          string   `json:"website"`
	Repository       string   `json:"repository"`
	Description      string   `json:"description"`
	Tagline          string   `json:"tagline"`
	ConfigEnvPrefix  string   `json:"configEnvPrefix"`
	DefaultConfigDir string   `json:"defaultConfigDir"`
	DefaultRunDir    string   `json:"defaultRunDir"`
	BinaryName       string   `json:"binaryName"`
	ConfigFileName   string   `json:"configFileName"`
	Copyright        string   `json:"copyright"`
	License          string   `json:"license"`
	Fingerprints     []string `json:"fingerprints"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Vendor = b.Vendor
	Website = b.Website
	Repository = b.Repository
	Description = b.Description
	Tagline = b.Tagline
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultRunDir = b.DefaultRunDir
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	Copyright = b.Copyright
	License = b.License
	Fingerprints = append([]string(nil), b.Fingerprints...)
}

var (
	Name             string
	LowerName        string
	Vendor           string
	Website          string
	Repository       string
	Description      string
	Tagline          string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	DefaultRunDir    string
	BinaryName       string
	ConfigFileName   string
	Copyright        string
	License          string

	// Fingerprints are command-line substrings that identify a running
	// instance of this program.
	Fingerprints []string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetConfigDir returns the config directory, checking env vars first.
// Priority: LANBRIDGE_CONFIG_DIR > LANBRIDGE_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetRunDir returns the runtime directory for the PID file.
// Priority: LANBRIDGE_RUN_DIR > LANBRIDGE_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return DefaultRunDir
}

// GetPIDFile returns the path of the PID file written by a running instance.
func GetPIDFile() string {
	return filepath.Join(GetRunDir(), LowerName+".pid")
}
