// Package testutil holds helpers shared by tests that touch the host.
package testutil

import (
	"os"
	"os/exec"
	"strings"
	"testing"
)

// IntegrationEnv enables tests that inspect or signal real processes.
const IntegrationEnv = "LANBRIDGE_INTEGRATION_TEST"

// RequireIntegration skips the test unless IntegrationEnv is set.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(IntegrationEnv) == "" {
		t.Skip("Skipping test: requires " + IntegrationEnv + " environment")
	}
}

// RequireAnyTool skips the test when none of the named programs is on PATH.
// It returns the first one found.
func RequireAnyTool(t *testing.T, names ...string) string {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	t.Skip("Skipping test: none of " + strings.Join(names, ", ") + " found on PATH")
	return ""
}
