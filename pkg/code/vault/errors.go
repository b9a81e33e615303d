package vault

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

var (
	// ErrAlreadyInitialized is returned when a state record already exists
	// for the user. Resubmitting won't help.
	ErrAlreadyInitialized = errors.New("vault already initialized")

	// ErrDerivationMismatch is returned when a supplied address doesn't match
	// its derivation from the user and the cached bumps.
	ErrDerivationMismatch = errors.New("derived address mismatch")

	// ErrInsufficientFunds is returned when the user can't cover a transfer.
	// The operation can be retried after funding the user.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized is returned when the user didn't sign.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccountNotFound is returned when depositing before initialization.
	ErrAccountNotFound = errors.New("vault account not found")

	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidInstruction   = errors.New("invalid instruction")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrBlockhashNotFound    = errors.New("blockhash not found")
	ErrRateLimited          = errors.New("rate limited")
)

// InstructionError is returned when an instruction of a transaction fails.
// The transaction is rolled back.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

func (e *InstructionError) Cause() error {
	return e.Err
}

// fromLedgerError translates host ledger failures into vault errors.
func fromLedgerError(err error) error {
	switch errors.Cause(err) {
	case ledger.ErrInsufficientFunds:
		return ErrInsufficientFunds
	case ledger.ErrMissingSignature:
		return ErrUnauthorized
	case ledger.ErrAccountAlreadyExists:
		return ErrAlreadyInitialized
	case ledger.ErrAccountNotFound:
		return ErrAccountNotFound
	case ledger.ErrInvalidAmount:
		return ErrInvalidAmount
	case ledger.ErrInvalidOwner, ledger.ErrInvalidDataSize, ledger.ErrInvalidAddress:
		return errors.Wrap(ErrInvalidInstruction, err.Error())
	}
	return err
}

// ErrorFromTransactionError translates a failed on-chain vault transaction
// into a vault error. Errors that have no equivalent are returned unchanged.
func ErrorFromTransactionError(txErr *solana.TransactionError) error {
	if txErr == nil {
		return nil
	}

	switch txErr.ErrorKey() {
	case solana.TransactionErrorDuplicateSignature, solana.TransactionErrorAlreadyProcessed:
		return errors.Wrap(ErrDuplicateTransaction, txErr.Error())
	case solana.TransactionErrorSignatureFailure:
		return errors.Wrap(ErrUnauthorized, txErr.Error())
	case solana.TransactionErrorInsufficientFundsForFee, solana.TransactionErrorAccountNotFound:
		return errors.Wrap(ErrInsufficientFunds, txErr.Error())
	case solana.TransactionErrorBlockhashNotFound:
		return errors.Wrap(ErrBlockhashNotFound, txErr.Error())
	case solana.TransactionErrorSanitizeFailure:
		return errors.Wrap(ErrInvalidInstruction, txErr.Error())
	case solana.TransactionErrorInstructionError:
	default:
		return txErr
	}

	instructionErr := txErr.InstructionError()
	if instructionErr == nil {
		return txErr
	}

	var translated error
	switch instructionErr.ErrorKey() {
	case solana.InstructionErrorMissingRequiredSignature:
		translated = ErrUnauthorized
	case solana.InstructionErrorInsufficientFunds:
		translated = ErrInsufficientFunds
	case solana.InstructionErrorAccountAlreadyInitialized:
		translated = ErrAlreadyInitialized
	case solana.InstructionErrorUninitializedAccount:
		translated = ErrAccountNotFound
	case solana.InstructionErrorInvalidSeeds:
		translated = ErrDerivationMismatch
	case solana.InstructionErrorInvalidInstructionData:
		translated = ErrInvalidInstruction
	case solana.InstructionErrorCustom:
		translated = fromCustomError(*instructionErr.CustomError())
	}

	if translated == nil {
		return txErr
	}
	return errors.Wrap(translated, txErr.Error())
}

// fromCustomError translates codes raised by the vault program, Anchor's
// account validation and the system program invoked by the vault program.
// Their ranges don't overlap.
func fromCustomError(code solana.CustomError) error {
	switch uint32(code) {
	case uint32(anchor_vault.AccountAlreadyInUse):
		return ErrAlreadyInitialized
	case uint32(anchor_vault.ResultWithNegativeLamports):
		return ErrInsufficientFunds
	case uint32(anchor_vault.ConstraintSeeds),
		uint32(anchor_vault.AccountDiscriminatorNotFound),
		uint32(anchor_vault.AccountDiscriminatorMismatch),
		uint32(anchor_vault.AccountOwnedByWrongProgram):
		return ErrDerivationMismatch
	case uint32(anchor_vault.AccountNotInitialized):
		return ErrAccountNotFound
	case uint32(anchor_vault.AccountNotSigner), uint32(anchor_vault.ConstraintSigner):
		return ErrUnauthorized
	case uint32(anchor_vault.InstructionFallbackNotFound), uint32(anchor_vault.InstructionDidNotDeserialize):
		return ErrInvalidInstruction
	case uint32(anchor_vault.InvalidAmount):
		return ErrInvalidAmount
	}
	return nil
}

// TransactionErrorFromError is the inverse of ErrorFromTransactionError. It
// reports a failed vault transaction the way the cluster would, and returns
// nil for errors that don't describe a failed transaction.
func TransactionErrorFromError(err error) *solana.TransactionError {
	var instructionErr *InstructionError
	if !errors.As(err, &instructionErr) {
		switch {
		case errors.Is(err, ErrDuplicateTransaction):
			return solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
		case errors.Is(err, ErrBlockhashNotFound):
			return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
		case errors.Is(err, ErrUnauthorized):
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		case errors.Is(err, ErrInvalidInstruction):
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}
		return nil
	}

	var detail error
	switch {
	case errors.Is(err, ErrAlreadyInitialized):
		detail = solana.CustomError(anchor_vault.AccountAlreadyInUse)
	case errors.Is(err, ErrInsufficientFunds):
		detail = solana.CustomError(anchor_vault.ResultWithNegativeLamports)
	case errors.Is(err, ErrDerivationMismatch):
		detail = solana.CustomError(anchor_vault.ConstraintSeeds)
	case errors.Is(err, ErrAccountNotFound):
		detail = solana.CustomError(anchor_vault.AccountNotInitialized)
	case errors.Is(err, ErrInvalidAmount):
		detail = solana.CustomError(anchor_vault.InvalidAmount)
	case errors.Is(err, ErrUnauthorized):
		detail = errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	case errors.Is(err, ErrInvalidInstruction):
		detail = errors.New(string(solana.InstructionErrorInvalidInstructionData))
	default:
		return nil
	}
	return solana.NewInstructionTransactionError(instructionErr.Index, detail)
}
