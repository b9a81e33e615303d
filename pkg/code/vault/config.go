package vault

import (
	"time"

	"github.com/code-payments/code-vault/pkg/config"
	"github.com/code-payments/code-vault/pkg/config/env"
	"github.com/code-payments/code-vault/pkg/config/memory"
	"github.com/code-payments/code-vault/pkg/config/wrapper"
)

const (
	envConfigPrefix = "VAULT_"

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 1024

	SignatureCacheSizeConfigEnvName = envConfigPrefix + "SIGNATURE_CACHE_SIZE"
	defaultSignatureCacheSize       = 100_000

	RecentBlockhashCountConfigEnvName = envConfigPrefix + "RECENT_BLOCKHASH_COUNT"
	defaultRecentBlockhashCount       = 300

	// 0 disables rate limiting
	MaxTransactionsPerSecondPerPayerConfigEnvName = envConfigPrefix + "MAX_TRANSACTIONS_PER_SECOND_PER_PAYER"
	defaultMaxTransactionsPerSecondPerPayer       = 0

	SubmitTimeoutConfigEnvName = envConfigPrefix + "SUBMIT_TIMEOUT"
	defaultSubmitTimeout       = 30 * time.Second
)

type conf struct {
	lockStripes                      config.Uint64
	signatureCacheSize               config.Int64
	recentBlockhashCount             config.Int64
	maxTransactionsPerSecondPerPayer config.Float64
	submitTimeout                    config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lockStripes:                      env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
			signatureCacheSize:               env.NewInt64Config(SignatureCacheSizeConfigEnvName, defaultSignatureCacheSize),
			recentBlockhashCount:             env.NewInt64Config(RecentBlockhashCountConfigEnvName, defaultRecentBlockhashCount),
			maxTransactionsPerSecondPerPayer: env.NewFloat64Config(MaxTransactionsPerSecondPerPayerConfigEnvName, defaultMaxTransactionsPerSecondPerPayer),
			submitTimeout:                    env.NewDurationConfig(SubmitTimeoutConfigEnvName, defaultSubmitTimeout),
		}
	}
}

type testOverrides struct {
	recentBlockhashCount             int64
	maxTransactionsPerSecondPerPayer float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	recentBlockhashCount := int64(defaultRecentBlockhashCount)
	if overrides.recentBlockhashCount > 0 {
		recentBlockhashCount = overrides.recentBlockhashCount
	}

	return func() *conf {
		return &conf{
			lockStripes:                      wrapper.NewUint64Config(memory.NewConfig(uint64(defaultLockStripes)), defaultLockStripes),
			signatureCacheSize:               wrapper.NewInt64Config(memory.NewConfig(int64(defaultSignatureCacheSize)), defaultSignatureCacheSize),
			recentBlockhashCount:             wrapper.NewInt64Config(memory.NewConfig(recentBlockhashCount), defaultRecentBlockhashCount),
			maxTransactionsPerSecondPerPayer: wrapper.NewFloat64Config(memory.NewConfig(overrides.maxTransactionsPerSecondPerPayer), defaultMaxTransactionsPerSecondPerPayer),
			submitTimeout:                    wrapper.NewDurationConfig(memory.NewConfig(defaultSubmitTimeout), defaultSubmitTimeout),
		}
	}
}

// positiveOr falls back to defaultValue for sizes that would leave a cache or
// lock table empty.
func positiveOr[T int64 | uint64](value, defaultValue T) T {
	if value <= 0 {
		return defaultValue
	}
	return value
}
