package vault

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

func TestErrorFromTransactionError(t *testing.T) {
	for _, tc := range []struct {
		txErr    *solana.TransactionError
		expected error
	}{
		{solana.NewTransactionError(solana.TransactionErrorDuplicateSignature), ErrDuplicateTransaction},
		{solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed), ErrDuplicateTransaction},
		{solana.NewTransactionError(solana.TransactionErrorSignatureFailure), ErrUnauthorized},
		{solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee), ErrInsufficientFunds},
		{solana.NewTransactionError(solana.TransactionErrorAccountNotFound), ErrInsufficientFunds},
		{solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound), ErrBlockhashNotFound},
		{solana.NewTransactionError(solana.TransactionErrorSanitizeFailure), ErrInvalidInstruction},

		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorMissingRequiredSignature))), ErrUnauthorized},
		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorInsufficientFunds))), ErrInsufficientFunds},
		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorAccountAlreadyInitialized))), ErrAlreadyInitialized},
		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorUninitializedAccount))), ErrAccountNotFound},
		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorInvalidSeeds))), ErrDerivationMismatch},
		{solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorInvalidInstructionData))), ErrInvalidInstruction},

		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountAlreadyInUse)), ErrAlreadyInitialized},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.ResultWithNegativeLamports)), ErrInsufficientFunds},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.ConstraintSeeds)), ErrDerivationMismatch},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountDiscriminatorNotFound)), ErrDerivationMismatch},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountDiscriminatorMismatch)), ErrDerivationMismatch},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountOwnedByWrongProgram)), ErrDerivationMismatch},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountNotInitialized)), ErrAccountNotFound},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.AccountNotSigner)), ErrUnauthorized},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.ConstraintSigner)), ErrUnauthorized},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.InstructionFallbackNotFound)), ErrInvalidInstruction},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.InstructionDidNotDeserialize)), ErrInvalidInstruction},
		{solana.NewInstructionTransactionError(1, solana.CustomError(anchor_vault.InvalidAmount)), ErrInvalidAmount},
	} {
		actual := ErrorFromTransactionError(tc.txErr)
		assert.ErrorIs(t, actual, tc.expected, tc.txErr.Error())
		assert.Contains(t, actual.Error(), tc.txErr.Error())
	}

	// Untranslated errors are passed through
	for _, txErr := range []*solana.TransactionError{
		solana.NewTransactionError(solana.TransactionErrorAccountInUse),
		solana.NewTransactionError(solana.TransactionErrorInstructionError),
		solana.NewInstructionTransactionError(0, errors.New(string(solana.InstructionErrorIncorrectProgramID))),
		solana.NewInstructionTransactionError(0, solana.CustomError(9999)),
	} {
		assert.Equal(t, txErr, ErrorFromTransactionError(txErr))
	}

	assert.NoError(t, ErrorFromTransactionError(nil))
}

func TestFromLedgerError(t *testing.T) {
	for _, tc := range []struct {
		err      error
		expected error
	}{
		{ledger.ErrInsufficientFunds, ErrInsufficientFunds},
		{errors.Wrap(ledger.ErrInsufficientFunds, "wrapped"), ErrInsufficientFunds},
		{ledger.ErrMissingSignature, ErrUnauthorized},
		{ledger.ErrAccountAlreadyExists, ErrAlreadyInitialized},
		{ledger.ErrAccountNotFound, ErrAccountNotFound},
		{ledger.ErrInvalidAmount, ErrInvalidAmount},
		{ledger.ErrInvalidOwner, ErrInvalidInstruction},
		{ledger.ErrInvalidDataSize, ErrInvalidInstruction},
		{ledger.ErrInvalidAddress, ErrInvalidInstruction},
	} {
		assert.ErrorIs(t, fromLedgerError(tc.err), tc.expected)
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, fromLedgerError(other))
	assert.NoError(t, fromLedgerError(nil))
}

func TestTransactionErrorFromError(t *testing.T) {
	for _, err := range []error{
		ErrDuplicateTransaction,
		ErrBlockhashNotFound,
		ErrUnauthorized,
		errors.Wrap(ErrInvalidInstruction, "empty transaction"),
	} {
		txErr := TransactionErrorFromError(err)
		if assert.NotNil(t, txErr, err.Error()) {
			assert.Nil(t, txErr.InstructionError())
			assert.ErrorIs(t, ErrorFromTransactionError(txErr), errors.Cause(err))
		}
	}

	for _, err := range []error{
		ErrAlreadyInitialized,
		ErrInsufficientFunds,
		ErrDerivationMismatch,
		ErrAccountNotFound,
		ErrInvalidAmount,
		ErrUnauthorized,
		ErrInvalidInstruction,
	} {
		txErr := TransactionErrorFromError(&InstructionError{Index: 2, Err: errors.Wrap(err, "context")})
		if assert.NotNil(t, txErr, err.Error()) {
			require.NotNil(t, txErr.InstructionError())
			assert.Equal(t, 2, txErr.InstructionError().Index)
			assert.ErrorIs(t, ErrorFromTransactionError(txErr), err)
		}
	}

	assert.Nil(t, TransactionErrorFromError(ErrRateLimited))
	assert.Nil(t, TransactionErrorFromError(errors.New("connection reset")))
	assert.Nil(t, TransactionErrorFromError(&InstructionError{Index: 0, Err: errors.New("connection reset")}))
}
