package anchor_vault

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/solana"
)

func TestInitializeInstruction(t *testing.T) {
	accounts := &InitializeInstructionAccounts{
		User:       generateKey(t),
		VaultState: generateKey(t),
		Vault:      generateKey(t),
	}

	instruction := NewInitializeInstruction(PROGRAM_ID, accounts, &InitializeInstructionArgs{})
	assert.Equal(t, PROGRAM_ID, instruction.Program)
	assert.Equal(t, initializeInstructionDiscriminator, instruction.Data)
	assert.Equal(t, InstructionTypeInitialize, GetInstructionType(instruction.Data))

	require.Len(t, instruction.Accounts, 4)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsWritable)
	assert.Equal(t, SYSTEM_PROGRAM_ID, instruction.Accounts[3].PublicKey)
	assert.False(t, instruction.Accounts[3].IsWritable)

	decompiled, metas, err := DecompileInitializeInstruction(PROGRAM_ID, compile(t, accounts.User, instruction))
	require.NoError(t, err)
	assert.Equal(t, accounts, decompiled)
	assert.True(t, metas[0].IsSigner)
	assert.False(t, metas[1].IsSigner)

	_, _, err = DecompileInitializeInstruction(generateKey(t), instruction)
	assert.Equal(t, ErrInvalidProgram, err)

	instruction.Accounts = instruction.Accounts[:3]
	_, _, err = DecompileInitializeInstruction(PROGRAM_ID, instruction)
	assert.Error(t, err)
}

func TestDepositInstruction(t *testing.T) {
	accounts := &DepositInstructionAccounts{
		User:       generateKey(t),
		VaultState: generateKey(t),
		Vault:      generateKey(t),
	}

	instruction := NewDepositInstruction(PROGRAM_ID, accounts, &DepositInstructionArgs{Amount: 1_000_000})
	assert.Equal(t, []byte{0xf2, 0x23, 0xc6, 0x89, 0x52, 0xe1, 0xf2, 0xb6, 0x40, 0x42, 0x0f, 0, 0, 0, 0, 0}, instruction.Data)
	assert.Equal(t, InstructionTypeDeposit, GetInstructionType(instruction.Data))

	require.Len(t, instruction.Accounts, 4)
	assert.False(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsWritable)

	decompiled, args, _, err := DecompileDepositInstruction(PROGRAM_ID, compile(t, accounts.User, instruction))
	require.NoError(t, err)
	assert.Equal(t, accounts, decompiled)
	assert.EqualValues(t, 1_000_000, args.Amount)

	truncated := instruction
	truncated.Data = instruction.Data[:12]
	_, _, _, err = DecompileDepositInstruction(PROGRAM_ID, truncated)
	assert.Equal(t, ErrInvalidInstructionData, err)

	initialize := NewInitializeInstruction(PROGRAM_ID, &InitializeInstructionAccounts{
		User:       accounts.User,
		VaultState: accounts.VaultState,
		Vault:      accounts.Vault,
	}, &InitializeInstructionArgs{})
	_, _, err = DecompileInitializeInstruction(PROGRAM_ID, instruction)
	assert.Equal(t, ErrInvalidInstructionData, err)
	_, _, _, err = DecompileDepositInstruction(PROGRAM_ID, initialize)
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestGetInstructionType_Unknown(t *testing.T) {
	assert.Equal(t, InstructionTypeUnknown, GetInstructionType(nil))
	assert.Equal(t, InstructionTypeUnknown, GetInstructionType([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t, "unknown", InstructionTypeUnknown.String())
}

func compile(t *testing.T, payer ed25519.PublicKey, instruction solana.Instruction) solana.Instruction {
	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(payer, instruction).Marshal()))

	decompiled, err := solana.DecompileInstruction(tx.Message, 0)
	require.NoError(t, err)
	return decompiled
}

func generateKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
