// Package rent computes the minimum balance that keeps an account of a given
// data size rent exempt.
package rent

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
)

const (
	// AccountStorageOverhead is the per account byte count charged on top of
	// its data.
	AccountStorageOverhead = 128

	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
)

var ErrInvalidParams = errors.New("invalid rent parameters")

// Calculator computes minimum reserve balances. Results are never cached by
// callers, so the policy can change between calls.
type Calculator interface {
	// MinimumBalance returns the lamports an account with dataSize bytes of
	// data must hold to be rent exempt.
	MinimumBalance(ctx context.Context, dataSize uint64) (uint64, error)
}

// Params is a rent policy.
type Params struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultParams is the policy of the Solana clusters.
var DefaultParams = Params{
	LamportsPerByteYear: DefaultLamportsPerByteYear,
	ExemptionThreshold:  DefaultExemptionThreshold,
}

func (p Params) Validate() error {
	if p.LamportsPerByteYear == 0 {
		return errors.Wrap(ErrInvalidParams, "lamports per byte year must be positive")
	}
	if p.ExemptionThreshold <= 0 || math.IsNaN(p.ExemptionThreshold) || math.IsInf(p.ExemptionThreshold, 0) {
		return errors.Wrap(ErrInvalidParams, "exemption threshold must be positive")
	}
	return nil
}

// MinimumBalance applies the policy to dataSize.
func (p Params) MinimumBalance(dataSize uint64) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	bytes := float64(AccountStorageOverhead) + float64(dataSize)
	lamports := bytes * float64(p.LamportsPerByteYear) * p.ExemptionThreshold
	if lamports >= math.MaxUint64 {
		return 0, errors.Wrap(ErrInvalidParams, "minimum balance overflows")
	}
	return uint64(lamports), nil
}

type staticCalculator struct {
	params Params
}

// NewStaticCalculator returns a Calculator with a fixed policy.
func NewStaticCalculator(params Params) Calculator {
	return &staticCalculator{params: params}
}

// MinimumBalance implements Calculator.MinimumBalance
func (c *staticCalculator) MinimumBalance(_ context.Context, dataSize uint64) (uint64, error) {
	return c.params.MinimumBalance(dataSize)
}

type configCalculator struct {
	conf *conf
}

// NewConfigCalculator returns a Calculator whose policy is read from config on
// every call.
func NewConfigCalculator(configProvider ConfigProvider) Calculator {
	return &configCalculator{conf: configProvider()}
}

// MinimumBalance implements Calculator.MinimumBalance
func (c *configCalculator) MinimumBalance(ctx context.Context, dataSize uint64) (uint64, error) {
	params := Params{
		LamportsPerByteYear: c.conf.lamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  c.conf.exemptionThreshold.Get(ctx),
	}
	return params.MinimumBalance(dataSize)
}

type rpcCalculator struct {
	client solana.Client
}

// NewRPCCalculator returns a Calculator that asks the cluster.
func NewRPCCalculator(client solana.Client) Calculator {
	return &rpcCalculator{client: client}
}

// MinimumBalance implements Calculator.MinimumBalance
func (c *rpcCalculator) MinimumBalance(_ context.Context, dataSize uint64) (uint64, error) {
	lamports, err := c.client.GetMinimumBalanceForRentExemption(dataSize)
	if err != nil {
		return 0, errors.Wrap(err, "error getting minimum balance for rent exemption")
	}
	return lamports, nil
}
