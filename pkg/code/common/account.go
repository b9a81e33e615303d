package common

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
)

// ErrNoPrivateKey is returned when signing with a public only account.
var ErrNoPrivateKey = errors.New("private key not available")

// Account is a ledger account identity, optionally with the private key to
// sign for it.
type Account struct {
	publicKey  *Key
	privateKey *Key // Optional
}

func NewAccountFromPublicKey(publicKey *Key) (*Account, error) {
	return newAccount(publicKey, nil)
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}
	return newAccount(key, nil)
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}
	return newAccount(key, nil)
}

func NewAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	if err := privateKey.Validate(); err != nil {
		return nil, err
	}
	if privateKey.IsPublic() {
		return nil, errors.New("private key isn't private")
	}

	publicKey, err := NewKeyFromBytes(ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey))
	if err != nil {
		return nil, errors.Wrap(err, "error deriving public key")
	}
	return newAccount(publicKey, privateKey)
}

func NewAccountFromPrivateKeyBytes(privateKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(privateKey)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(key)
}

func NewAccountFromPrivateKeyString(privateKey string) (*Account, error) {
	key, err := NewKeyFromString(privateKey)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(key)
}

// NewRandomAccount generates a keypair account.
func NewRandomAccount() (*Account, error) {
	key, err := NewRandomKey()
	if err != nil {
		return nil, err
	}

	account, err := NewAccountFromPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid account")
	}
	return account, nil
}

func newAccount(publicKey, privateKey *Key) (*Account, error) {
	account := &Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

// PrivateKey is nil for public only accounts.
func (a *Account) PrivateKey() *Key {
	return a.privateKey
}

// ToPublicKey returns the account address in the form the solana package uses.
func (a *Account) ToPublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a.publicKey.ToBytes())
}

// CanSign reports whether the account holds its private key.
func (a *Account) CanSign() bool {
	return a.privateKey != nil
}

// PublicOnly returns the account without its private key.
func (a *Account) PublicOnly() *Account {
	return &Account{publicKey: a.publicKey}
}

// SignTransaction adds the account's signature to txn.
func (a *Account) SignTransaction(txn *solana.Transaction) error {
	if !a.CanSign() {
		return ErrNoPrivateKey
	}
	return txn.Sign(ed25519.PrivateKey(a.privateKey.ToBytes()))
}

// IsOnCurve reports whether the account can have a private key. Program
// derived addresses never are.
func (a *Account) IsOnCurve() bool {
	return solana.IsOnCurve(a.publicKey.ToBytes())
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key isn't public")
	}

	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key isn't private")
	}

	derived := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(a.publicKey.ToBytes(), derived) {
		return errors.New("private key doesn't map to public key")
	}
	return nil
}

func (a *Account) String() string {
	return a.publicKey.ToBase58()
}
