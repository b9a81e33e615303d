package node

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/code-payments/code-vault/pkg/ledger"
)

// Genesis lists the accounts funded when a node starts.
//
//	accounts:
//	  - address: 4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM
//	    lamports: 1000000000
type Genesis struct {
	Accounts []GenesisAccount `yaml:"accounts"`
}

type GenesisAccount struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

func parseGenesis(data []byte) (*Genesis, error) {
	var genesis Genesis
	if err := yaml.Unmarshal(data, &genesis); err != nil {
		return nil, errors.Wrap(err, "invalid genesis file")
	}

	seen := make(map[string]struct{})
	for i, account := range genesis.Accounts {
		decoded, err := base58.Decode(account.Address)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid address for genesis account %d", i)
		}
		if account.Lamports == 0 {
			return nil, errors.Errorf("genesis account %s has no lamports", account.Address)
		}
		if _, ok := seen[account.Address]; ok {
			return nil, errors.Errorf("duplicate genesis account %s", account.Address)
		}
		seen[account.Address] = struct{}{}
	}

	return &genesis, nil
}

// apply funds every genesis account that doesn't exist yet, so restarting a
// node with a persistent ledger is a no-op.
func (g *Genesis) apply(ctx context.Context, log *logrus.Entry, l ledger.Ledger) error {
	for _, account := range g.Accounts {
		address, err := base58.Decode(account.Address)
		if err != nil {
			return err
		}

		_, err = l.GetAccount(ctx, address)
		if err == nil {
			continue
		} else if !errors.Is(err, ledger.ErrAccountNotFound) {
			return errors.Wrapf(err, "error getting genesis account %s", account.Address)
		}

		if err := l.Airdrop(ctx, address, account.Lamports); err != nil {
			return errors.Wrapf(err, "error funding genesis account %s", account.Address)
		}

		log.WithFields(logrus.Fields{
			"address":  account.Address,
			"lamports": account.Lamports,
		}).Info("funded genesis account")
	}
	return nil
}
