package brand

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBrandLoaded(t *testing.T) {
	if Name == "" {
		t.Error("Brand name should not be empty")
	}
	if Version == "" {
		t.Error("Global Version should be initialized (to dev default)")
	}
	if BinaryName == "" {
		t.Error("Global BinaryName should be initialized")
	}
	if len(Fingerprints) == 0 {
		t.Error("Fingerprints should not be empty")
	}
}

func TestGetDirectories(t *testing.T) {
	cleanEnv := func() {
		os.Unsetenv(ConfigEnvPrefix + "_PREFIX")
		os.Unsetenv(ConfigEnvPrefix + "_CONFIG_DIR")
		os.Unsetenv(ConfigEnvPrefix + "_RUN_DIR")
	}
	cleanEnv()
	defer cleanEnv()

	if GetConfigDir() != DefaultConfigDir {
		t.Errorf("Expected default config dir %s, got %s", DefaultConfigDir, GetConfigDir())
	}
	if GetRunDir() != DefaultRunDir {
		t.Errorf("Expected default run dir %s, got %s", DefaultRunDir, GetRunDir())
	}

	os.Setenv(ConfigEnvPrefix+"_PREFIX", "/tmp/lanbridge")
	if GetConfigDir() != "/tmp/lanbridge/config" {
		t.Errorf("Expected prefix config dir, got %s", GetConfigDir())
	}
	if GetPIDFile() != filepath.Join("/tmp/lanbridge/run", LowerName+".pid") {
		t.Errorf("Unexpected PID file path %s", GetPIDFile())
	}

	os.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/custom/config")
	if GetConfigDir() != "/custom/config" {
		t.Errorf("Expected custom config dir, got %s", GetConfigDir())
	}
}
