package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SG_API_BASE", "SG_TIMEOUT", "SG_COUNTDOWN", "SG_TICK", "SG_SESSION_TTL",
		"SG_STORE", "SG_STORE_PATH", "SG_STORE_DSN", "SG_STORE_KEY", "SG_NAMESPACE",
		"SG_LOG_LEVEL", "SG_LOG_DEV",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Equal(t, 10, c.Countdown)
	require.Equal(t, 30*time.Second, c.RequestTimeout)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("SG_API_BASE=https://api.example\nSG_COUNTDOWN=5\nSG_TICK=10ms\nSG_STORE=bolt\n"), 0o600))
	t.Setenv("SG_COUNTDOWN", "7")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "https://api.example", c.APIBase)
	require.Equal(t, 7, c.Countdown, "process env wins over .env")
	require.Equal(t, 10*time.Millisecond, c.TickInterval)
	require.Equal(t, StoreBolt, c.Store)
}

func TestLoad_BadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SG_TIMEOUT", "soon")
	_, err := Load("")
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("SG_COUNTDOWN", "ten")
	_, err = Load("")
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("SG_STORE", "postgres")
	_, err = Load("")
	require.Error(t, err, "postgres without dsn")

	clearEnv(t)
	t.Setenv("SG_STORE", "s3")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	c := Default()
	require.NoError(t, c.Validate())
	c.Countdown = 0
	require.Error(t, c.Validate())
	c = Default()
	c.Store = StorePostgres
	c.StoreDSN = "postgres://x"
	require.NoError(t, c.Validate())
}
