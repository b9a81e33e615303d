package anchor_vault

// AnchorError is a framework error code raised while validating accounts.
//
// Source: https://github.com/coral-xyz/anchor/blob/v0.30.1/lang/src/error.rs
type AnchorError uint32

const (
	InstructionFallbackNotFound  AnchorError = 101
	InstructionDidNotDeserialize AnchorError = 102
	ConstraintSigner             AnchorError = 2002
	ConstraintSeeds              AnchorError = 2006
	AccountDiscriminatorNotFound AnchorError = 3001
	AccountDiscriminatorMismatch AnchorError = 3002
	AccountOwnedByWrongProgram   AnchorError = 3007
	AccountNotSigner             AnchorError = 3010
	AccountNotInitialized        AnchorError = 3012
)

// VaultError is raised by the vault program itself.
type VaultError uint32

const (
	// Deposit amount must be greater than zero
	InvalidAmount VaultError = iota + 0x1770
)

// SystemError is raised by the system program when the vault program
// invokes it.
//
// Source: https://github.com/solana-labs/solana/blob/v1.18.26/sdk/program/src/system_instruction.rs#L54
type SystemError uint32

const (
	AccountAlreadyInUse        SystemError = 0
	ResultWithNegativeLamports SystemError = 1
)
