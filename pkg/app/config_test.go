package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: vault-node
log_level: debug
listen_address: ":9000"
shutdown_grace_period: 5s
enable_ballast: false
app:
  program_id: 6RpYNZhk25mktpRowY71JzGsyQtRZTbxPN4n2FE1ga8w
  ledger:
    type: memory
`), 0600))

	v := viper.New()
	bindEnv(v)

	config, err := loadConfig(v, path)
	require.NoError(t, err)

	assert.Equal(t, "vault-node", config.AppName)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, ":9000", config.ListenAddress)
	assert.Equal(t, 5*time.Second, config.ShutdownGracePeriod)
	assert.False(t, config.EnableBallast)

	// Defaults survive
	assert.Equal(t, defaultConfig.DebugListenAddress, config.DebugListenAddress)
	assert.True(t, config.EnablePprof)
	assert.Equal(t, defaultConfig.MemoryLeakCronSchedule, config.MemoryLeakCronSchedule)

	assert.Equal(t, "6RpYNZhk25mktpRowY71JzGsyQtRZTbxPN4n2FE1ga8w", config.AppConfig["program_id"])
	ledger, ok := config.AppConfig["ledger"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "memory", ledger["type"])
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("APP_NAME", "from-env")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "1m")
	t.Setenv("ENABLE_PPROF", "false")

	v := viper.New()
	bindEnv(v)

	config, err := loadConfig(v, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.AppName)
	assert.Equal(t, time.Minute, config.ShutdownGracePeriod)
	assert.False(t, config.EnablePprof)
	assert.Equal(t, defaultConfig.ListenAddress, config.ListenAddress)
	assert.Empty(t, config.AppConfig)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	v := viper.New()
	_, err := loadConfig(v, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_name: [unterminated"), 0600))

	v = viper.New()
	_, err = loadConfig(v, path)
	assert.Error(t, err)
}

func TestBallastSize(t *testing.T) {
	assert.EqualValues(t, 250, ballastSize(0.25, 1000))
	assert.EqualValues(t, 500, ballastSize(0.9, 1000))
	assert.EqualValues(t, 0, ballastSize(-1, 1000))
}

func TestNewDebugMux(t *testing.T) {
	assert.Nil(t, newDebugMux(BaseConfig{}))
	assert.NotNil(t, newDebugMux(BaseConfig{EnableExpvar: true}))
	assert.NotNil(t, newDebugMux(BaseConfig{EnablePprof: true}))
}
