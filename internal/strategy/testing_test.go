package strategy

import (
	"testing"

	"github.com/selivandex/signal-engine/pkg/logger"
)

// setupTestLogger initializes the global logger for tests that cross the
// fault boundary, which logs converted failures.
func setupTestLogger(t *testing.T) {
	t.Helper()
	if logger.Log == nil {
		if err := logger.Init("error", ""); err != nil {
			t.Fatalf("failed to initialize logger: %v", err)
		}
	}
}
