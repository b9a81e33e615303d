package anchor_vault

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
)

var (
	VaultStatePrefix = []byte("state")
	VaultPrefix      = []byte("vault")
)

// AddressDeriver derives vault addresses for a single program.
//
// The Find methods search for the canonical bump and are only meant for
// initialization. The WithBump methods recompute an address from a cached
// bump without searching.
type AddressDeriver struct {
	program ed25519.PublicKey
}

func NewAddressDeriver(program ed25519.PublicKey) *AddressDeriver {
	return &AddressDeriver{
		program: program,
	}
}

func (d *AddressDeriver) Program() ed25519.PublicKey {
	return d.program
}

// FindVaultStateAddress returns the canonical state record address for user.
func (d *AddressDeriver) FindVaultStateAddress(user ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	if err := checkSeedKey(user); err != nil {
		return nil, 0, err
	}
	return solana.FindProgramAddressAndBump(d.program, VaultStatePrefix, user)
}

// VaultStateAddressWithBump recomputes the state record address for user.
func (d *AddressDeriver) VaultStateAddressWithBump(user ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	if err := checkSeedKey(user); err != nil {
		return nil, err
	}
	return solana.CreateProgramAddress(d.program, VaultStatePrefix, user, []byte{bump})
}

// FindVaultAddress returns the canonical vault address for a state record.
func (d *AddressDeriver) FindVaultAddress(state ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	if err := checkSeedKey(state); err != nil {
		return nil, 0, err
	}
	return solana.FindProgramAddressAndBump(d.program, VaultPrefix, state)
}

// VaultAddressWithBump recomputes the vault address for a state record.
func (d *AddressDeriver) VaultAddressWithBump(state ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	if err := checkSeedKey(state); err != nil {
		return nil, err
	}
	return solana.CreateProgramAddress(d.program, VaultPrefix, state, []byte{bump})
}

func checkSeedKey(key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return errors.Errorf("invalid key length: %d", len(key))
	}
	return nil
}
