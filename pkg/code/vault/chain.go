package vault

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/solana"
)

// Chain is where vault transactions execute: either the local Processor, or a
// cluster running the vault program. Failures are reported with the errors of
// this package in both cases.
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)

	// SubmitTransaction returns once the transaction has been executed.
	SubmitTransaction(ctx context.Context, txn solana.Transaction) (solana.Signature, error)

	// GetAccount returns ledger.ErrAccountNotFound if no account exists.
	GetAccount(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error)

	// GetBalance returns 0 for accounts that don't exist.
	GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error)
}

type rpcChain struct {
	log        *logrus.Entry
	client     solana.Client
	commitment solana.Commitment
}

// NewRPCChain returns a Chain submitting transactions to a cluster through
// client, waiting for them to be confirmed.
func NewRPCChain(client solana.Client) Chain {
	return &rpcChain{
		log:        logrus.StandardLogger().WithField("type", "vault/rpc_chain"),
		client:     client,
		commitment: solana.CommitmentConfirmed,
	}
}

// GetLatestBlockhash implements Chain.GetLatestBlockhash
func (c *rpcChain) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Blockhash{}, err
	}
	return c.client.GetLatestBlockhash()
}

// SubmitTransaction implements Chain.SubmitTransaction
func (c *rpcChain) SubmitTransaction(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return txn.Signature(), err
	}

	sig, err := c.client.SubmitTransaction(txn, c.commitment)
	if txErr, ok := err.(*solana.TransactionError); ok {
		return sig, ErrorFromTransactionError(txErr)
	} else if err != nil {
		return sig, errors.Wrap(err, "error submitting transaction")
	}

	if err := ctx.Err(); err != nil {
		return sig, err
	}

	status, err := c.client.GetSignatureStatus(sig, c.commitment)
	if err != nil {
		return sig, errors.Wrap(err, "error confirming transaction")
	}
	if status.ErrorResult != nil {
		return sig, ErrorFromTransactionError(status.ErrorResult)
	}

	return sig, nil
}

// GetAccount implements Chain.GetAccount
func (c *rpcChain) GetAccount(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := c.client.GetAccountInfo(address, c.commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ledger.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}

	return &ledger.Account{
		Address:  append(ed25519.PublicKey(nil), address...),
		Owner:    info.Owner,
		Lamports: info.Lamports,
		Data:     info.Data,
	}, nil
}

// GetBalance implements Chain.GetBalance
func (c *rpcChain) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	balance, err := c.client.GetBalance(address)
	if err == solana.ErrNoBalance {
		return 0, nil
	}
	return balance, err
}
