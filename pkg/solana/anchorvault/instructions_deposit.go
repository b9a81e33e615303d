package anchor_vault

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/solana"
	"github.com/code-payments/code-vault/pkg/solana/binary"
)

// sha256("global:deposit")[:8]
var depositInstructionDiscriminator = []byte{
	0xf2, 0x23, 0xc6, 0x89, 0x52, 0xe1, 0xf2, 0xb6,
}

const (
	DepositInstructionArgsSize = 8 // amount
)

type DepositInstructionArgs struct {
	Amount uint64
}

type DepositInstructionAccounts struct {
	User       ed25519.PublicKey
	VaultState ed25519.PublicKey
	Vault      ed25519.PublicKey
}

func NewDepositInstruction(
	program ed25519.PublicKey,
	accounts *DepositInstructionAccounts,
	args *DepositInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(depositInstructionDiscriminator)+
			DepositInstructionArgsSize)

	putDiscriminator(data, depositInstructionDiscriminator, &offset)
	binary.PutUint64(data, args.Amount, &offset)

	return solana.NewInstruction(
		program,
		data,
		solana.NewAccountMeta(accounts.User, true),
		solana.NewReadonlyAccountMeta(accounts.VaultState, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	)
}

// DecompileDepositInstruction extracts the accounts and arguments of a
// deposit instruction, along with the signer and writable flags the runtime saw.
func DecompileDepositInstruction(program ed25519.PublicKey, i solana.Instruction) (*DepositInstructionAccounts, *DepositInstructionArgs, []solana.AccountMeta, error) {
	if !bytes.Equal(i.Program, program) {
		return nil, nil, nil, ErrInvalidProgram
	}
	if len(i.Data) != len(depositInstructionDiscriminator)+DepositInstructionArgsSize {
		return nil, nil, nil, ErrInvalidInstructionData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(i.Data, &discriminator, &offset)
	if !bytes.Equal(discriminator, depositInstructionDiscriminator) {
		return nil, nil, nil, ErrInvalidInstructionData
	}

	var args DepositInstructionArgs
	binary.GetUint64(i.Data, &args.Amount, &offset)

	if len(i.Accounts) != 4 {
		return nil, nil, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(i.Accounts[3].PublicKey, SYSTEM_PROGRAM_ID) {
		return nil, nil, nil, errors.New("invalid system program account")
	}

	return &DepositInstructionAccounts{
		User:       i.Accounts[0].PublicKey,
		VaultState: i.Accounts[1].PublicKey,
		Vault:      i.Accounts[2].PublicKey,
	}, &args, i.Accounts, nil
}
