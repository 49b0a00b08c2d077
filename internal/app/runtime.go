package app

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// TestModeEnv, when true, makes the binaries exit before start-up and Build
// skip schema migration.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether runtime side effects are disabled. The
// environment is read on first use.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv, e.g. after a .env file was loaded.
func RefreshTestMode() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	enabled := err == nil && v
	testMode.Store(&enabled)
	return enabled
}
