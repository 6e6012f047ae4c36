package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v2"

	"grimm.is/lanbridge/internal/brand"
)

// ErrNotFound is returned by Locate when no configuration file exists in any
// of the searched locations.
var ErrNotFound = errors.New("configuration file not found")

// CandidateNames are the file names Locate looks for, in order.
var CandidateNames = []string{
	brand.ConfigFileName,
	brand.LowerName + ".yaml",
	brand.LowerName + ".yml",
	"config.yaml",
	"config.hcl",
}

// LoadFile loads a config file (HCL, YAML or JSON), applies environment
// overrides and defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".hcl":
		cfg, err = LoadHCL(data, path)
	case ".yaml", ".yml":
		cfg, err = LoadYAML(data)
	case ".json":
		cfg, err = LoadJSON(data)
	default:
		// Try HCL first, fall back to YAML
		cfg, err = LoadHCL(data, path)
		if err != nil {
			var yamlErr error
			cfg, yamlErr = LoadYAML(data)
			if yamlErr != nil {
				return nil, fmt.Errorf("%s is neither HCL (%v) nor YAML (%w)", path, err, yamlErr)
			}
			err = nil
		}
	}
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, errs)
	}
	return cfg, nil
}

// LoadHCL decodes HCL bytes. Defaults are not applied.
func LoadHCL(data []byte, filename string) (*Config, error) {
	if !strings.HasSuffix(filename, ".hcl") {
		// hclsimple picks the syntax from the extension
		filename += ".hcl"
	}
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("HCL parse error: %w", err)
	}
	return &cfg, nil
}

// LoadYAML decodes YAML bytes in the camelCase layout of config.yaml.
// Defaults are not applied.
func LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	return &cfg, nil
}

// LoadJSON decodes JSON bytes. Defaults are not applied.
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides file values from the environment:
//
//	LANBRIDGE_LISTEN_PORT  local.listen_port
//	LANBRIDGE_REMOTE       remote host:port
//	LANBRIDGE_LOG_LEVEL    logging.level
func ApplyEnv(cfg *Config) error {
	prefix := brand.ConfigEnvPrefix + "_"

	if v := os.Getenv(prefix + "LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLISTEN_PORT: %w", prefix, err)
		}
		if cfg.Local == nil {
			cfg.Local = &Local{}
		}
		cfg.Local.ListenPort = port
	}

	if v := os.Getenv(prefix + "REMOTE"); v != "" {
		host, portStr, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("%sREMOTE: %w", prefix, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("%sREMOTE: invalid port: %w", prefix, err)
		}
		cfg.Remote = &Remote{Host: host, Port: port}
	}

	if v := os.Getenv(prefix + "LOG_LEVEL"); v != "" {
		if cfg.Logging == nil {
			cfg.Logging = &Logging{}
		}
		cfg.Logging.Level = v
	}
	return nil
}

// SearchDirs returns the directories Locate searches: the executable's
// directory, the working directory, then the system config directory.
func SearchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	dirs = append(dirs, brand.GetConfigDir())
	return dedupe(dirs)
}

// Locate resolves the configuration file to load. An explicit path is used
// as-is. Otherwise the first candidate found in SearchDirs wins. When nothing
// exists the returned error wraps ErrNotFound and the returned path is where a
// template should be written.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return explicit, fmt.Errorf("%w: %s", ErrNotFound, explicit)
			}
			return explicit, fmt.Errorf("failed to stat config file: %w", err)
		}
		return explicit, nil
	}
	return locateIn(SearchDirs())
}

func locateIn(dirs []string) (string, error) {
	var checked []string
	for _, dir := range dirs {
		for _, name := range CandidateNames {
			path := filepath.Join(dir, name)
			checked = append(checked, path)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	fallback := brand.ConfigFileName
	if len(dirs) > 0 {
		fallback = filepath.Join(dirs[0], brand.ConfigFileName)
	}
	return fallback, fmt.Errorf("%w (checked %s)", ErrNotFound, strings.Join(checked, ", "))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
