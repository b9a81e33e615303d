package rpc

import (
	"github.com/code-payments/code-vault/pkg/config"
	"github.com/code-payments/code-vault/pkg/config/env"
	"github.com/code-payments/code-vault/pkg/config/memory"
	"github.com/code-payments/code-vault/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RPC_"

	SignatureStatusCacheSizeConfigEnvName = envConfigPrefix + "SIGNATURE_STATUS_CACHE_SIZE"
	defaultSignatureStatusCacheSize       = 100_000

	MaxAirdropLamportsConfigEnvName = envConfigPrefix + "MAX_AIRDROP_LAMPORTS"
	defaultMaxAirdropLamports       = 10_000_000_000

	DisableAirdropsConfigEnvName = envConfigPrefix + "DISABLE_AIRDROPS"
	defaultDisableAirdrops       = false
)

type conf struct {
	signatureStatusCacheSize config.Int64
	maxAirdropLamports       config.Uint64
	disableAirdrops          config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			signatureStatusCacheSize: env.NewInt64Config(SignatureStatusCacheSizeConfigEnvName, defaultSignatureStatusCacheSize),
			maxAirdropLamports:       env.NewUint64Config(MaxAirdropLamportsConfigEnvName, defaultMaxAirdropLamports),
			disableAirdrops:          env.NewBoolConfig(DisableAirdropsConfigEnvName, defaultDisableAirdrops),
		}
	}
}

type testOverrides struct {
	disableAirdrops bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			signatureStatusCacheSize: wrapper.NewInt64Config(memory.NewConfig(int64(defaultSignatureStatusCacheSize)), defaultSignatureStatusCacheSize),
			maxAirdropLamports:       wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxAirdropLamports)), defaultMaxAirdropLamports),
			disableAirdrops:          wrapper.NewBoolConfig(memory.NewConfig(overrides.disableAirdrops), defaultDisableAirdrops),
		}
	}
}
