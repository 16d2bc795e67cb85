package integration

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

// waitFor polls a condition until it returns true or timeout is reached.
// Uses short polling intervals for fast tests with reliable results.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// writeDoc marshals items as a JSON array document at path.
func writeDoc(t *testing.T, path string, items any) {
	t.Helper()
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("failed to marshal document: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
}
