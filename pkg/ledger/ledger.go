// Package ledger models the host ledger vault funds live on: lamport accounts
// with an owning program and opaque data, mutated only through atomic
// transactions.
package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// MaxAccountDataSize bounds the data allocated for a single account.
const MaxAccountDataSize = 10 * 1024 * 1024

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrMissingSignature     = errors.New("missing required signature")
	ErrInvalidOwner         = errors.New("invalid account owner")
	ErrInvalidDataSize      = errors.New("invalid account data size")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidAddress       = errors.New("invalid account address")
)

// SystemProgram owns plain lamport accounts.
var SystemProgram = make(ed25519.PublicKey, ed25519.PublicKeySize)

// Account is the state of a single ledger account.
type Account struct {
	Address  ed25519.PublicKey
	Owner    ed25519.PublicKey
	Lamports uint64
	Data     []byte
}

// Ledger is the host ledger.
type Ledger interface {
	// ExecuteTx runs fn as one atomic unit: every effect fn has through tx
	// commits when fn returns nil, and none does otherwise. signers are the
	// accounts that authorized the transaction.
	//
	// fn must only access the ledger through tx.
	ExecuteTx(ctx context.Context, signers []ed25519.PublicKey, fn func(tx Tx) error) error

	// GetAccount returns ErrAccountNotFound if no account exists at address.
	GetAccount(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// GetBalance returns 0 for accounts that don't exist.
	GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error)

	// Airdrop credits lamports to a system account, creating it if needed.
	Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) error
}

// Tx is the view of the ledger within ExecuteTx.
type Tx interface {
	// GetAccount returns ErrAccountNotFound if no account exists at address.
	GetAccount(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// CreateAccount funds address with lamports from payer, allocates space
	// zeroed bytes and assigns it to owner. The payer must have signed.
	//
	// An existing system account with no data, ie. one that was only sent
	// lamports, is topped up and assigned instead. Any other existing account
	// results in ErrAccountAlreadyExists.
	CreateAccount(ctx context.Context, payer, address, owner ed25519.PublicKey, lamports, space uint64) error

	// Transfer moves lamports from a signing system account to another account,
	// which is created as a system account if it doesn't exist.
	Transfer(ctx context.Context, from, to ed25519.PublicKey, lamports uint64) error

	// WriteData replaces the data of an account owned by program. The size of
	// the data is fixed at allocation.
	WriteData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error
}

func (a *Account) IsSystemOwned() bool {
	return bytes.Equal(a.Owner, SystemProgram)
}

func (a *Account) Validate() error {
	if len(a.Address) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	if len(a.Owner) != ed25519.PublicKeySize {
		return ErrInvalidOwner
	}
	if len(a.Data) > MaxAccountDataSize {
		return ErrInvalidDataSize
	}
	return nil
}

func (a *Account) Clone() *Account {
	return &Account{
		Address:  cloneKey(a.Address),
		Owner:    cloneKey(a.Owner),
		Lamports: a.Lamports,
		Data:     append([]byte(nil), a.Data...),
	}
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"Account{address=%s,owner=%s,lamports=%d,data_size=%d}",
		base58.Encode(a.Address),
		base58.Encode(a.Owner),
		a.Lamports,
		len(a.Data),
	)
}

func cloneKey(key ed25519.PublicKey) ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), key...)
}
