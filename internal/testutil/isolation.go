// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// Isolate hides every environment variable starting with prefix for the
// rest of t, so configuration overlays only see what the test sets. The
// variables are restored by t.Cleanup. Tests calling it cannot be parallel.
func Isolate(t *testing.T, prefix string) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		// Setenv records the original value for restoration.
		t.Setenv(key, value)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
