package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"
)

// State is the raw account storage a backend exposes within one of its
// transactions. Ledger rules are applied on top of it by NewTx.
type State interface {
	// Load returns ErrAccountNotFound if no account exists at address.
	Load(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// Save inserts or replaces the account.
	Save(ctx context.Context, account *Account) error
}

type tx struct {
	signers map[string]struct{}
	state   State
}

// NewTx returns a Tx enforcing ledger rules over state, authorized by signers.
func NewTx(state State, signers []ed25519.PublicKey) Tx {
	t := &tx{
		signers: make(map[string]struct{}, len(signers)),
		state:   state,
	}
	for _, signer := range signers {
		t.signers[string(signer)] = struct{}{}
	}
	return t
}

// GetAccount implements Tx.GetAccount
func (t *tx) GetAccount(ctx context.Context, address ed25519.PublicKey) (*Account, error) {
	if len(address) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return t.state.Load(ctx, address)
}

// CreateAccount implements Tx.CreateAccount
func (t *tx) CreateAccount(ctx context.Context, payer, address, owner ed25519.PublicKey, lamports, space uint64) error {
	if len(address) != ed25519.PublicKeySize || len(payer) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	if len(owner) != ed25519.PublicKeySize {
		return ErrInvalidOwner
	}
	if space > MaxAccountDataSize {
		return ErrInvalidDataSize
	}
	if !t.isSigner(payer) {
		return ErrMissingSignature
	}
	if bytes.Equal(payer, address) {
		return ErrAccountAlreadyExists
	}

	target, err := loadOrNew(ctx, t.state, address)
	if err != nil {
		return err
	}
	if !target.IsSystemOwned() || len(target.Data) > 0 {
		return ErrAccountAlreadyExists
	}

	var required uint64
	if target.Lamports < lamports {
		required = lamports - target.Lamports
	}
	if required > 0 {
		if err := t.debit(ctx, payer, required); err != nil {
			return err
		}
		target.Lamports += required
	}

	target.Owner = cloneKey(owner)
	target.Data = make([]byte, space)
	return t.state.Save(ctx, target)
}

// Transfer implements Tx.Transfer
func (t *tx) Transfer(ctx context.Context, from, to ed25519.PublicKey, lamports uint64) error {
	if len(from) != ed25519.PublicKeySize || len(to) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	if lamports == 0 {
		return ErrInvalidAmount
	}
	if !t.isSigner(from) {
		return ErrMissingSignature
	}

	// Debit first, so a transfer to self observes the debited balance.
	if err := t.debit(ctx, from, lamports); err != nil {
		return err
	}

	return Credit(ctx, t.state, to, lamports)
}

// WriteData implements Tx.WriteData
func (t *tx) WriteData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error {
	account, err := t.GetAccount(ctx, address)
	if err != nil {
		return err
	}
	if !bytes.Equal(account.Owner, program) {
		return ErrInvalidOwner
	}
	if len(account.Data) != len(data) {
		return ErrInvalidDataSize
	}

	account.Data = append([]byte(nil), data...)
	return t.state.Save(ctx, account)
}

// debit removes lamports from a system owned account. Accounts that don't
// exist hold no lamports.
func (t *tx) debit(ctx context.Context, address ed25519.PublicKey, lamports uint64) error {
	account, err := t.state.Load(ctx, address)
	if err == ErrAccountNotFound {
		return ErrInsufficientFunds
	} else if err != nil {
		return err
	}

	if !account.IsSystemOwned() || len(account.Data) > 0 {
		return ErrInvalidOwner
	}
	if account.Lamports < lamports {
		return ErrInsufficientFunds
	}

	account.Lamports -= lamports
	return t.state.Save(ctx, account)
}

func (t *tx) isSigner(address ed25519.PublicKey) bool {
	_, ok := t.signers[string(address)]
	return ok
}

// Credit adds lamports to the account at address in state, creating a system
// account if none exists. Backends use it to implement Ledger.Airdrop.
func Credit(ctx context.Context, state State, address ed25519.PublicKey, lamports uint64) error {
	if len(address) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	if lamports == 0 {
		return ErrInvalidAmount
	}

	account, err := loadOrNew(ctx, state, address)
	if err != nil {
		return err
	}

	if math.MaxUint64-account.Lamports < lamports {
		return errors.Wrap(ErrInvalidAmount, "balance overflow")
	}
	account.Lamports += lamports
	return state.Save(ctx, account)
}

// loadOrNew returns an empty system account for addresses with no account.
func loadOrNew(ctx context.Context, state State, address ed25519.PublicKey) (*Account, error) {
	account, err := state.Load(ctx, address)
	if err == ErrAccountNotFound {
		return &Account{
			Address: cloneKey(address),
			Owner:   cloneKey(SystemProgram),
		}, nil
	}
	return account, err
}
