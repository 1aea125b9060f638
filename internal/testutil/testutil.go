// Package testutil holds fixtures shared by the imgforge test suites.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// truthy reports whether the env var is set to an affirmative value.
func truthy(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// skipOrFail skips the test, unless the environment demands the dependency.
func skipOrFail(t testing.TB, strictEnv, format string, args ...any) {
	t.Helper()
	if truthy(strictEnv) || truthy("TEST_REQUIRE_INFRA") {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

// WriteScript creates an executable sh script in dir. The test is skipped on
// hosts without sh.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	path := filepath.Join(dir, name)
	script := "#!" + sh + "\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil { // #nosec G306 - test script must be executable
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

// WaitFor polls cond every 10ms and reports whether it became true in time.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(timeout)
	for {
		if cond() {
			return true
		}
		select {
		case <-deadline:
			return cond()
		case <-tick.C:
		}
	}
}
