package vault

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/code-vault/pkg/ledger"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

// AccountType is the kind of vault account stored at a ledger address.
type AccountType uint8

const (
	AccountTypeUnknown AccountType = iota
	AccountTypeStateRecord
	AccountTypeVault
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeStateRecord:
		return "state_record"
	case AccountTypeVault:
		return "vault"
	}
	return "unknown"
}

// GetAccountType classifies a ledger account by its owner and data. Whether a
// system account is a vault also depends on its address, which callers verify
// through derivation.
func GetAccountType(program ed25519.PublicKey, account *ledger.Account) AccountType {
	if account == nil {
		return AccountTypeUnknown
	}

	if bytes.Equal(account.Owner, program) {
		if len(account.Data) != anchor_vault.VaultStateAccountSize {
			return AccountTypeUnknown
		}

		var record anchor_vault.VaultStateAccount
		if err := record.Unmarshal(account.Data); err != nil {
			return AccountTypeUnknown
		}
		return AccountTypeStateRecord
	}

	if account.IsSystemOwned() && len(account.Data) == 0 {
		return AccountTypeVault
	}

	return AccountTypeUnknown
}

// toStateRecord returns the state record stored in account, or nil if the
// account isn't one.
func toStateRecord(program ed25519.PublicKey, account *ledger.Account) *anchor_vault.VaultStateAccount {
	if GetAccountType(program, account) != AccountTypeStateRecord {
		return nil
	}

	var record anchor_vault.VaultStateAccount
	if err := record.Unmarshal(account.Data); err != nil {
		return nil
	}
	return &record
}
