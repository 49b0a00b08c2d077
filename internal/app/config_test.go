package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "unset")
	require.NoError(t, os.Unsetenv("STORAGE_BACKEND"))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.StorageBackend)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.BalanceCacheTTL)
	require.Equal(t, 56, cfg.ReorderWindowDays)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", " Remote ")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, BackendRemote, cfg.StorageBackend)

	t.Setenv("STORAGE_BACKEND", "sqlite")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "sqlite")
}

func TestReorderConfigFromEnv(t *testing.T) {
	t.Setenv("REORDER_WINDOW_DAYS", "28")
	t.Setenv("REORDER_COVERAGE_WEEKS", "4")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	rc := cfg.ReorderConfig()
	require.Equal(t, 28, rc.WindowDays)
	require.Equal(t, 4, rc.CoverageWeeks)
	require.Equal(t, 7, rc.LeadDays)
}

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(func() { RefreshTestMode() })

	t.Setenv(TestModeEnv, "true")
	_, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	require.False(t, RefreshTestMode())
	require.False(t, InTestMode())

	t.Setenv(TestModeEnv, "maybe")
	require.False(t, RefreshTestMode())
}
