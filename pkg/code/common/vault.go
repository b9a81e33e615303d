package common

import (
	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

// VaultAccounts are the derived accounts backing a user's vault.
type VaultAccounts struct {
	Owner *Account

	State     *Account
	StateBump uint8

	Vault     *Account
	VaultBump uint8
}

// GetVaultAccounts searches for the canonical vault accounts of the owner.
// Only initialization should search; later operations use
// GetVaultAccountsWithBumps with the cached bumps.
func (a *Account) GetVaultAccounts(deriver *anchor_vault.AddressDeriver) (*VaultAccounts, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating owner account")
	}

	stateAddress, stateBump, err := deriver.FindVaultStateAddress(a.ToPublicKey())
	if err != nil {
		return nil, errors.Wrap(err, "error finding vault state address")
	}

	vaultAddress, vaultBump, err := deriver.FindVaultAddress(stateAddress)
	if err != nil {
		return nil, errors.Wrap(err, "error finding vault address")
	}

	return newVaultAccounts(a, stateAddress, stateBump, vaultAddress, vaultBump)
}

// GetVaultAccountsWithBumps recomputes the vault accounts of the owner from
// cached bumps.
func (a *Account) GetVaultAccountsWithBumps(deriver *anchor_vault.AddressDeriver, stateBump, vaultBump uint8) (*VaultAccounts, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating owner account")
	}

	stateAddress, err := deriver.VaultStateAddressWithBump(a.ToPublicKey(), stateBump)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving vault state address")
	}

	vaultAddress, err := deriver.VaultAddressWithBump(stateAddress, vaultBump)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving vault address")
	}

	return newVaultAccounts(a, stateAddress, stateBump, vaultAddress, vaultBump)
}

func newVaultAccounts(owner *Account, stateAddress []byte, stateBump uint8, vaultAddress []byte, vaultBump uint8) (*VaultAccounts, error) {
	stateAccount, err := NewAccountFromPublicKeyBytes(stateAddress)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vault state address")
	}

	vaultAccount, err := NewAccountFromPublicKeyBytes(vaultAddress)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vault address")
	}

	return &VaultAccounts{
		Owner: owner,

		State:     stateAccount,
		StateBump: stateBump,

		Vault:     vaultAccount,
		VaultBump: vaultBump,
	}, nil
}

// ToStateRecord returns the state record persisted at the State address.
func (a *VaultAccounts) ToStateRecord() *anchor_vault.VaultStateAccount {
	return &anchor_vault.VaultStateAccount{
		VaultBump: a.VaultBump,
		StateBump: a.StateBump,
	}
}

// GetInitializeInstruction gets the instruction creating the vault accounts
func (a *VaultAccounts) GetInitializeInstruction(program *Account) solana.Instruction {
	return anchor_vault.NewInitializeInstruction(
		program.ToPublicKey(),
		&anchor_vault.InitializeInstructionAccounts{
			User:       a.Owner.ToPublicKey(),
			VaultState: a.State.ToPublicKey(),
			Vault:      a.Vault.ToPublicKey(),
		},
		&anchor_vault.InitializeInstructionArgs{},
	)
}

// GetDepositInstruction gets the instruction moving amount lamports from the
// owner into the vault
func (a *VaultAccounts) GetDepositInstruction(program *Account, amount uint64) solana.Instruction {
	return anchor_vault.NewDepositInstruction(
		program.ToPublicKey(),
		&anchor_vault.DepositInstructionAccounts{
			User:       a.Owner.ToPublicKey(),
			VaultState: a.State.ToPublicKey(),
			Vault:      a.Vault.ToPublicKey(),
		},
		&anchor_vault.DepositInstructionArgs{
			Amount: amount,
		},
	)
}
