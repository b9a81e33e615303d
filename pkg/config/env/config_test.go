package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-vault/pkg/config"
)

func TestConfig(t *testing.T) {
	const key = "env_config_test_var"

	c := NewConfig(key)

	v, err := c.Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)

	t.Setenv("ENV_CONFIG_TEST_VAR", "value")

	v, err = c.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), v)
}

func TestTypedConfig(t *testing.T) {
	t.Setenv("ENV_CONFIG_TEST_LAMPORTS", "6960")

	assert.EqualValues(t, 6960, NewUint64Config("env_config_test_lamports", 3480).Get(context.Background()))
	assert.EqualValues(t, 2.0, NewFloat64Config("env_config_test_threshold", 2.0).Get(context.Background()))
}

func TestConfig_Blank(t *testing.T) {
	t.Setenv("ENV_CONFIG_TEST_BLANK", "  ")

	_, err := NewConfig("env_config_test_blank").Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	t.Setenv("ENV_CONFIG_TEST_BLANK", " 30s\n")
	assert.Equal(t, 30*time.Second, NewDurationConfig("env_config_test_blank", time.Second).Get(context.Background()))
}
