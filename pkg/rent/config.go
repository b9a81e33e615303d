package rent

import (
	"github.com/code-payments/code-vault/pkg/config"
	"github.com/code-payments/code-vault/pkg/config/env"
)

const (
	envConfigPrefix = "RENT_"

	LamportsPerByteYearConfigEnvName = envConfigPrefix + "LAMPORTS_PER_BYTE_YEAR"
	ExemptionThresholdConfigEnvName  = envConfigPrefix + "EXEMPTION_THRESHOLD"
)

type conf struct {
	lamportsPerByteYear config.Uint64
	exemptionThreshold  config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return WithConfigs(
		env.NewUint64Config(LamportsPerByteYearConfigEnvName, DefaultLamportsPerByteYear),
		env.NewFloat64Config(ExemptionThresholdConfigEnvName, DefaultExemptionThreshold),
	)
}

// WithConfigs returns configuration pulled from the provided configs
func WithConfigs(lamportsPerByteYear config.Uint64, exemptionThreshold config.Float64) ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerByteYear: lamportsPerByteYear,
			exemptionThreshold:  exemptionThreshold,
		}
	}
}
