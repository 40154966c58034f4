// Package testing prepares the process environment for package tests that
// construct the application wiring. Import it for its side effects.
package testing

import (
	"os"
	stdtesting "testing"
)

var defaults = map[string]string{
	"STAFFDESK_TEST_MODE": "1",
	"SESSION_SECRET":      "test-secret",
	"APP_ENV":             "test",
}

func init() {
	for key, value := range defaults {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
	// test mode is forced even when the caller exported it as false
	_ = os.Setenv("STAFFDESK_TEST_MODE", "1")
}

// TestMain runs the package tests with the defaults applied.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
