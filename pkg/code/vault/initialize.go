package vault

import (
	"bytes"
	"context"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

// initialize creates the user's state record at its canonical address, funds
// the vault with the zero data reserve and caches both bumps in the record.
//
// The canonical bumps are searched for here, and only here.
func (p *Processor) initialize(
	ctx context.Context,
	tx ledger.Tx,
	accounts *anchor_vault.InitializeInstructionAccounts,
	metas []solana.AccountMeta,
) error {
	log := p.log.WithFields(logrus.Fields{
		"method": "initialize",
		"user":   base58.Encode(accounts.User),
	})

	if !metas[0].IsSigner {
		return errors.Wrap(ErrUnauthorized, "user must sign")
	}
	if !solana.IsOnCurve(accounts.User) {
		return errors.Wrap(ErrUnauthorized, "user is not a signing identity")
	}

	stateAddress, stateBump, err := p.deriver.FindVaultStateAddress(accounts.User)
	if err != nil {
		return errors.Wrap(err, "error finding vault state address")
	}
	if !bytes.Equal(stateAddress, accounts.VaultState) {
		return errors.Wrap(ErrDerivationMismatch, "vault state address")
	}

	stateReserve, err := p.rent.MinimumBalance(ctx, anchor_vault.VaultStateAccountSize)
	if err != nil {
		return errors.Wrap(err, "error getting vault state reserve")
	}

	err = tx.CreateAccount(ctx, accounts.User, stateAddress, p.program, stateReserve, anchor_vault.VaultStateAccountSize)
	if err != nil {
		return errors.Wrap(fromLedgerError(err), "error creating vault state")
	}

	vaultAddress, vaultBump, err := p.deriver.FindVaultAddress(stateAddress)
	if err != nil {
		return errors.Wrap(err, "error finding vault address")
	}
	if !bytes.Equal(vaultAddress, accounts.Vault) {
		return errors.Wrap(ErrDerivationMismatch, "vault address")
	}

	reserve, err := p.rent.MinimumBalance(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "error getting vault reserve")
	}

	if err := tx.Transfer(ctx, accounts.User, vaultAddress, reserve); err != nil {
		return errors.Wrap(fromLedgerError(err), "error funding vault")
	}

	record := &anchor_vault.VaultStateAccount{
		VaultBump: vaultBump,
		StateBump: stateBump,
	}
	if err := tx.WriteData(ctx, p.program, stateAddress, record.Marshal()); err != nil {
		return errors.Wrap(err, "error writing vault state")
	}

	log.WithFields(logrus.Fields{
		"vault_state": base58.Encode(stateAddress),
		"vault":       base58.Encode(vaultAddress),
		"state_bump":  stateBump,
		"vault_bump":  vaultBump,
		"reserve":     reserve,
	}).Trace("vault initialized")

	return nil
}
