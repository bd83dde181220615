package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, cfg.Lending.LoanPeriod)
	require.Equal(t, int64(10), cfg.Lending.FinePerDay)
	require.Equal(t, 20, cfg.Lending.HighBorrowThreshold)
	require.Equal(t, "0 0 1 * * *", cfg.Lending.OverdueSchedule)
	require.Equal(t, "secret", cfg.Auth.Secret)
}

func TestNewConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
lending:
  finePerDay: 25
  loanPeriod: 72h
log:
  level: warn
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FINE_PER_DAY", "50")

	cfg, err := NewConfig(WithLogLevel(zapcore.DebugLevel), WithWriteTimeout(time.Minute))
	require.NoError(t, err)

	require.Equal(t, "9000", cfg.Server.Port)
	require.Equal(t, 72*time.Hour, cfg.Lending.LoanPeriod)
	// env beats the file
	require.Equal(t, int64(50), cfg.Lending.FinePerDay)
	// options beat everything
	require.Equal(t, zapcore.DebugLevel, cfg.Log.LogLevel)
	require.Equal(t, time.Minute, cfg.Server.WriteTimeout)
}

func TestNewConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := NewConfig()
	require.Error(t, err)
}
