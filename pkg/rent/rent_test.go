package rent

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/config/memory"
	"github.com/code-payments/code-vault/pkg/config/wrapper"
	"github.com/code-payments/code-vault/pkg/solana"
)

func TestParams_MinimumBalance(t *testing.T) {
	for _, tc := range []struct {
		dataSize uint64
		expected uint64
	}{
		{0, 890_880},
		{10, 960_480},
		{165, 2_039_280},
	} {
		actual, err := DefaultParams.MinimumBalance(tc.dataSize)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, actual, tc.dataSize)
	}
}

func TestParams_Invalid(t *testing.T) {
	for _, params := range []Params{
		{LamportsPerByteYear: 0, ExemptionThreshold: 2},
		{LamportsPerByteYear: 3480, ExemptionThreshold: 0},
		{LamportsPerByteYear: 3480, ExemptionThreshold: -1},
		{LamportsPerByteYear: 3480, ExemptionThreshold: math.NaN()},
		{LamportsPerByteYear: 3480, ExemptionThreshold: math.Inf(1)},
	} {
		_, err := params.MinimumBalance(0)
		assert.True(t, errors.Is(err, ErrInvalidParams))
	}

	_, err := Params{LamportsPerByteYear: math.MaxUint64, ExemptionThreshold: 2}.MinimumBalance(math.MaxUint32)
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestStaticCalculator(t *testing.T) {
	c := NewStaticCalculator(Params{LamportsPerByteYear: 1, ExemptionThreshold: 1})

	actual, err := c.MinimumBalance(context.Background(), 72)
	require.NoError(t, err)
	assert.EqualValues(t, 200, actual)
}

func TestConfigCalculator(t *testing.T) {
	ctx := context.Background()

	lamports := memory.NewConfig(nil)
	threshold := memory.NewConfig(nil)
	c := NewConfigCalculator(WithConfigs(
		wrapper.NewUint64Config(lamports, DefaultLamportsPerByteYear),
		wrapper.NewFloat64Config(threshold, DefaultExemptionThreshold),
	))

	actual, err := c.MinimumBalance(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 890_880, actual)

	// Policy changes are observed without rebuilding the calculator.
	lamports.SetValue(uint64(6960))
	actual, err = c.MinimumBalance(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1_781_760, actual)

	threshold.SetValue([]byte("1"))
	actual, err = c.MinimumBalance(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 890_880, actual)

	threshold.SetValue(0.0)
	_, err = c.MinimumBalance(ctx, 0)
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestConfigCalculator_Env(t *testing.T) {
	t.Setenv(LamportsPerByteYearConfigEnvName, "1")
	t.Setenv(ExemptionThresholdConfigEnvName, "1")

	actual, err := NewConfigCalculator(WithEnvConfigs()).MinimumBalance(context.Background(), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 138, actual)
}

type rentOnlyClient struct {
	solana.Client
	err error
}

func (c *rentOnlyClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return DefaultParams.MinimumBalance(size)
}

func TestRPCCalculator(t *testing.T) {
	c := NewRPCCalculator(&rentOnlyClient{})
	actual, err := c.MinimumBalance(context.Background(), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 960_480, actual)

	expected := errors.New("unavailable")
	_, err = NewRPCCalculator(&rentOnlyClient{err: expected}).MinimumBalance(context.Background(), 10)
	assert.True(t, errors.Is(err, expected))
}
