package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.Driver, cfg.Driver)
	assert.Equal(t, d.Database, cfg.Database)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Detached)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := []byte(`driver: postgresql
host: warehouse.internal
port: 5432
database: dwh
username: etl
log_level: info
conn_max_lifetime: 30m
detached: true
ssl:
  enabled: true
  mode: require
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entityassist.yaml"), file, 0o600))

	t.Setenv("ENTITYASSIST_MAX_OPEN_CONNS", "3")
	t.Setenv("ENTITYASSIST_PASSWORD", "s3cret")
	t.Setenv("ENTITYASSIST_HOST", "override.internal")

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, entityassist.DriverPostgres, cfg.Driver)
	assert.Equal(t, "override.internal", cfg.Host, "environment wins over the file")
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "dwh", cfg.Database)
	assert.Equal(t, "etl", cfg.Username)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, 3, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Detached)
	assert.True(t, cfg.SSL.Enabled)
	assert.Equal(t, "require", cfg.SSL.Mode)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, entityassist.DriverSQLite, cfg.Driver)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENTITYASSIST_DRIVER", "oracle")
	_, err := Load(viper.New())
	require.Error(t, err)
	assert.True(t, entityassist.IsErrorType(err, entityassist.ErrorTypeInvalidArgument))
}

func TestLoadKeepsPQ(t *testing.T) {
	t.Setenv("ENTITYASSIST_DRIVER", "pq")
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "pq", cfg.Driver)
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "max-open-conns", FlagName(KeyMaxOpenConns))
	assert.Equal(t, "ssl-ca-file", FlagName(KeySSLCAFile))
	assert.Equal(t, "driver", FlagName(KeyDriver))
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Driver = entityassist.DriverMySQL
	cfg.Port = 3306
	cfg.SSL = entityassist.SSLConfig{Enabled: true, Mode: "true"}

	out, err := Marshal(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entityassist.yaml"), out, 0o600))

	back, err := Load(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestMarshalMasksPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Password = "s3cret"

	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cret")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "********", back["password"])
	assert.Equal(t, "sqlite", back["driver"])
}
