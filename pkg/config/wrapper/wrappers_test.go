package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/config"
	"github.com/code-payments/code-vault/pkg/config/memory"
)

// testWrapper walks a wrapper through default, override, error and
// unsupported-source transitions.
func testWrapper[T any](t *testing.T, ctor func(config.Config, T) config.Value[T], defaultValue, override T, rawOverride []byte, unsupported interface{}) {
	ctx := context.Background()
	mock := memory.NewConfig(nil)
	wrapper := ctor(mock, defaultValue)

	// Return the default value when no override is set
	val, err := wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	// The overriden value is returned when set
	mock.SetValue(override)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, override, val)

	// The last observed config value is returned on error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, override, val)
	assert.Equal(t, override, wrapper.Get(ctx))

	// The default value is returned when the override no longer has a value
	mock.StopInducingErrors()
	mock.ClearValue()
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	// Raw bytes, as yielded by env configs, are parsed
	mock.SetValue(rawOverride)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, override, val)

	// Unsupported sources keep the last value
	mock.SetValue(unsupported)
	val, err = wrapper.GetSafe(ctx)
	assert.Equal(t, ErrUnsuportedConversion, err)
	assert.Equal(t, override, val)
}

func TestBoolConfig(t *testing.T) {
	testWrapper(t, NewBoolConfig, true, false, []byte("false"), 1)
}

func TestInt64Config(t *testing.T) {
	testWrapper(t, NewInt64Config, int64(-1), int64(42), []byte("42"), "42")
}

func TestUint64Config(t *testing.T) {
	testWrapper(t, NewUint64Config, uint64(3480), uint64(6960), []byte("6960"), 6960)
}

func TestFloat64Config(t *testing.T) {
	testWrapper(t, NewFloat64Config, 2.0, 1.5, []byte("1.5"), float32(1.5))
}

func TestStringConfig(t *testing.T) {
	testWrapper(t, NewStringConfig, "default", "override", []byte("override"), 12)
}

func TestDurationConfig(t *testing.T) {
	testWrapper(t, NewDurationConfig, time.Second, time.Minute, []byte("1m"), 60)
}

func TestUnparsableBytes(t *testing.T) {
	mock := memory.NewConfig([]byte("not a number"))
	wrapper := NewUint64Config(mock, 7)

	val, err := wrapper.GetSafe(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 7, val)
}
