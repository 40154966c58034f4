package app

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// TestModeEnv disables network and database side effects of the binaries
// when set to a true value ("1", "true", "t").
const TestModeEnv = "STAFFDESK_TEST_MODE"

var testMode struct {
	once    sync.Once
	mu      sync.RWMutex
	enabled bool
}

func readTestMode() bool {
	enabled, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	return err == nil && enabled
}

// InTestMode reports whether the process runs under the test harness.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	testMode.mu.RLock()
	defer testMode.mu.RUnlock()
	return testMode.enabled
}

// RefreshTestMode re-reads the environment flag.
func RefreshTestMode() {
	enabled := readTestMode()
	testMode.mu.Lock()
	testMode.enabled = enabled
	testMode.mu.Unlock()
}

// SkipStartup reports whether binary should exit before touching its
// dependencies, logging the reason when it should.
func SkipStartup(binary string) bool {
	if !InTestMode() {
		return false
	}
	slog.Default().Info("test mode detected, skipping startup", slog.String("binary", binary), slog.String("env", TestModeEnv))
	return true
}
