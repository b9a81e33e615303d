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

// deposit moves amount from the user into their vault. Supplied addresses are
// verified by re-deriving them with the bumps cached in the state record.
// The state record is never modified.
func (p *Processor) deposit(
	ctx context.Context,
	tx ledger.Tx,
	accounts *anchor_vault.DepositInstructionAccounts,
	args *anchor_vault.DepositInstructionArgs,
	metas []solana.AccountMeta,
) error {
	log := p.log.WithFields(logrus.Fields{
		"method": "deposit",
		"user":   base58.Encode(accounts.User),
		"amount": args.Amount,
	})

	if !metas[0].IsSigner {
		return errors.Wrap(ErrUnauthorized, "user must sign")
	}

	stateAccount, err := tx.GetAccount(ctx, accounts.VaultState)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return p.classifyMissingState(accounts)
	} else if err != nil {
		return errors.Wrap(err, "error getting vault state")
	}

	record := toStateRecord(p.program, stateAccount)
	if record == nil {
		return errors.Wrap(ErrDerivationMismatch, "account is not a vault state")
	}

	stateAddress, err := p.deriver.VaultStateAddressWithBump(accounts.User, record.StateBump)
	if err != nil {
		return errors.Wrap(ErrDerivationMismatch, err.Error())
	}
	if !bytes.Equal(stateAddress, accounts.VaultState) {
		return errors.Wrap(ErrDerivationMismatch, "vault state address")
	}

	vaultAddress, err := p.deriver.VaultAddressWithBump(stateAddress, record.VaultBump)
	if err != nil {
		return errors.Wrap(ErrDerivationMismatch, err.Error())
	}
	if !bytes.Equal(vaultAddress, accounts.Vault) {
		return errors.Wrap(ErrDerivationMismatch, "vault address")
	}

	if args.Amount == 0 {
		return ErrInvalidAmount
	}

	if err := tx.Transfer(ctx, accounts.User, vaultAddress, args.Amount); err != nil {
		return errors.Wrap(fromLedgerError(err), "error transferring to vault")
	}

	log.WithField("vault", base58.Encode(vaultAddress)).Trace("deposited into vault")
	return nil
}

// classifyMissingState distinguishes a deposit before initialization from a
// deposit naming someone else's, or no one's, state address.
func (p *Processor) classifyMissingState(accounts *anchor_vault.DepositInstructionAccounts) error {
	canonical, _, err := p.deriver.FindVaultStateAddress(accounts.User)
	if err != nil {
		return errors.Wrap(err, "error finding vault state address")
	}

	if bytes.Equal(canonical, accounts.VaultState) {
		return ErrAccountNotFound
	}
	return errors.Wrap(ErrDerivationMismatch, "vault state address")
}
