package anchor_vault

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
)

// sha256("global:initialize")[:8]
var initializeInstructionDiscriminator = []byte{
	0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed,
}

const (
	InitializeInstructionArgsSize = 0
)

type InitializeInstructionArgs struct {
}

type InitializeInstructionAccounts struct {
	User       ed25519.PublicKey
	VaultState ed25519.PublicKey
	Vault      ed25519.PublicKey
}

func NewInitializeInstruction(
	program ed25519.PublicKey,
	accounts *InitializeInstructionAccounts,
	args *InitializeInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(initializeInstructionDiscriminator)+
			InitializeInstructionArgsSize)

	putDiscriminator(data, initializeInstructionDiscriminator, &offset)

	return solana.NewInstruction(
		program,
		data,
		solana.NewAccountMeta(accounts.User, true),
		solana.NewAccountMeta(accounts.VaultState, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

// DecompileInitializeInstruction extracts the accounts of an initialize
// instruction, along with the signer and writable flags the runtime saw.
func DecompileInitializeInstruction(program ed25519.PublicKey, i solana.Instruction) (*InitializeInstructionAccounts, []solana.AccountMeta, error) {
	if !bytes.Equal(i.Program, program) {
		return nil, nil, ErrInvalidProgram
	}
	if !bytes.Equal(i.Data, initializeInstructionDiscriminator) {
		return nil, nil, ErrInvalidInstructionData
	}
	if len(i.Accounts) != 4 {
		return nil, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(i.Accounts[3].PublicKey, SYSTEM_PROGRAM_ID) {
		return nil, nil, errors.New("invalid system program account")
	}

	return &InitializeInstructionAccounts{
		User:       i.Accounts[0].PublicKey,
		VaultState: i.Accounts[1].PublicKey,
		Vault:      i.Accounts[2].PublicKey,
	}, i.Accounts, nil
}
