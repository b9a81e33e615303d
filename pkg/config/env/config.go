// Package env provides configs sourced from environment variables.
package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/code-vault/pkg/config"
	"github.com/code-payments/code-vault/pkg/config/wrapper"
)

// variable reads one environment variable on every Get, so changes to the
// process environment are observed without a restart.
type variable struct {
	name   string
	lookup func(string) (string, bool)
}

// NewConfig returns a raw config for the upper-cased key. Unset and blank
// variables yield config.ErrNoValue.
func NewConfig(key string) config.Config {
	return &variable{
		name:   strings.ToUpper(key),
		lookup: os.LookupEnv,
	}
}

func (v *variable) Get(_ context.Context) (interface{}, error) {
	raw, ok := v.lookup(v.name)
	if !ok {
		return nil, config.ErrNoValue
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, config.ErrNoValue
	}
	return []byte(raw), nil
}

func (v *variable) Shutdown() {}

func NewInt64Config(key string, defaultValue int64) config.Int64 {
	return wrapper.NewInt64Config(NewConfig(key), defaultValue)
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
