package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"dgsync/internal/config"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// sqliteViper returns settings for a throwaway SQLite database.
func sqliteViper(t *testing.T) *viper.Viper {
	t.Helper()
	nv, err := newViper("", nil)
	require.NoError(t, err)
	nv.Set("database.driver", config.DriverSQLite)
	nv.Set("database.sqlite_path", filepath.Join(t.TempDir(), "dgsync.db"))
	nv.Set("metrics.enabled", false)
	return nv
}

func TestNewViper_Defaults(t *testing.T) {
	nv, err := newViper("", nil)
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, nv.GetString("database.driver"))
	assert.Equal(t, "8080", nv.GetString("api.port"))
	assert.Equal(t, "embedding", nv.GetString("worker.function"))
}

func TestNewViper_FileAndEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
database:
  driver: sqlite
  sqlite_path: /tmp/from-file.db
api:
  port: "9090"
worker:
  targets: [3, 4]
`)
	t.Setenv("DGSYNC_API_PORT", "7070")
	t.Setenv("DGSYNC_LOOKUP_THRESHOLD", "0.5")

	nv, err := newViper(path, nil)
	require.NoError(t, err)

	cfg := config.New(nv)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/from-file.db", cfg.Database.SQLitePath)
	assert.Equal(t, "7070", cfg.API.Port)
	assert.InDelta(t, 0.5, cfg.Lookup.Threshold, 1e-9)
	assert.Equal(t, []int64{3, 4}, cfg.Worker.Targets)
}

func TestNewViper_LogFlagsOverrideConfig(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: warn\n  format: text\n")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("log-format", "json", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	nv, err := newViper(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", nv.GetString("log.level"))
	assert.Equal(t, "text", nv.GetString("log.format"))
}

func TestNewViper_ExplicitFileMustExist(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestNewViper_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "database: [unterminated")
	_, err := newViper(path, nil)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidConfigurationIsAnError(t *testing.T) {
	prev := v
	t.Cleanup(func() { v = prev })

	v, _ = newViper("", nil)
	v.Set("database.driver", "oracle")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"api", "worker", "migrate", "version"})
}
