package anchor_vault

import (
	"bytes"
	"fmt"

	"github.com/code-payments/code-vault/pkg/solana/binary"
)

const (
	VaultStateAccountSize = (8 + // discriminator
		1 + // vault_bump
		1) // state_bump
)

// sha256("account:VaultState")[:8]
var VaultStateAccountDiscriminator = []byte{0xe4, 0xc4, 0x52, 0xa5, 0x62, 0xd2, 0xeb, 0x98}

type VaultStateAccount struct {
	VaultBump uint8
	StateBump uint8
}

func (obj *VaultStateAccount) Marshal() []byte {
	data := make([]byte, VaultStateAccountSize)

	var offset int
	putDiscriminator(data, VaultStateAccountDiscriminator, &offset)
	binary.PutUint8(data, obj.VaultBump, &offset)
	binary.PutUint8(data, obj.StateBump, &offset)

	return data
}

func (obj *VaultStateAccount) Unmarshal(data []byte) error {
	if len(data) < VaultStateAccountSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, VaultStateAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	binary.GetUint8(data, &obj.VaultBump, &offset)
	binary.GetUint8(data, &obj.StateBump, &offset)

	return nil
}

func (obj *VaultStateAccount) String() string {
	return fmt.Sprintf(
		"VaultState{vault_bump=%d,state_bump=%d}",
		obj.VaultBump,
		obj.StateBump,
	)
}
