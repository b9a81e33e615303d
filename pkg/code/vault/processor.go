// Package vault implements custodial vaults. Each user owns a state record at
// an address derived from their key, and a vault account derived from the
// state record that holds deposited lamports. Both derivation bumps are
// cached in the state record, and every later flow re-derives the addresses
// with them.
package vault

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/code-vault/pkg/cache"
	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/metrics"
	"github.com/code-payments/code-vault/pkg/rate"
	"github.com/code-payments/code-vault/pkg/rent"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
	"github.com/code-payments/code-vault/pkg/solana/system"
	sync_util "github.com/code-payments/code-vault/pkg/sync"
)

const (
	processorMetricsStructName = "vault.processor"
)

// ProcessorConfig identifies the vault program and the collaborators its
// flows execute against.
type ProcessorConfig struct {
	Program ed25519.PublicKey
	Ledger  ledger.Ledger
	Rent    rent.Calculator
}

func (c *ProcessorConfig) Validate() error {
	if c == nil {
		return errors.New("processor config is nil")
	}
	if len(c.Program) != ed25519.PublicKeySize {
		return errors.Errorf("invalid program id length: %d", len(c.Program))
	}
	if c.Ledger == nil {
		return errors.New("ledger is required")
	}
	if c.Rent == nil {
		return errors.New("rent calculator is required")
	}
	return nil
}

// Processor executes vault transactions against the host ledger, playing the
// role of the cluster runtime running the vault program. It implements Chain.
//
// Every transaction executes as a single ledger transaction. Accounts are
// locked for the duration, exclusively when the transaction may write them.
type Processor struct {
	log     *logrus.Entry
	conf    *conf
	program ed25519.PublicKey
	deriver *anchor_vault.AddressDeriver
	ledger  ledger.Ledger
	rent    rent.Calculator

	locks       *sync_util.StripedLock
	signatures  cache.Cache
	blockhashes cache.Cache
	limiter     rate.Limiter
}

func NewProcessor(cfg *ProcessorConfig, configProvider ConfigProvider) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	conf := configProvider()

	var limiter rate.Limiter = &rate.NoLimiter{}
	if limit := conf.maxTransactionsPerSecondPerPayer.Get(ctx); limit > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	}

	program := append(ed25519.PublicKey(nil), cfg.Program...)
	return &Processor{
		log:     logrus.StandardLogger().WithField("type", "vault/processor"),
		conf:    conf,
		program: program,
		deriver: anchor_vault.NewAddressDeriver(program),
		ledger:  cfg.Ledger,
		rent:    cfg.Rent,

		locks:       sync_util.NewStripedLock(uint(positiveOr(conf.lockStripes.Get(ctx), defaultLockStripes))),
		signatures:  cache.NewCache(int(positiveOr(conf.signatureCacheSize.Get(ctx), defaultSignatureCacheSize))),
		blockhashes: cache.NewCache(int(positiveOr(conf.recentBlockhashCount.Get(ctx), defaultRecentBlockhashCount))),
		limiter:     limiter,
	}, nil
}

// Program returns the id of the vault program the processor runs.
func (p *Processor) Program() ed25519.PublicKey {
	return p.program
}

// GetLatestBlockhash implements Chain.GetLatestBlockhash. Transactions must
// reference one of the recently issued blockhashes.
func (p *Processor) GetLatestBlockhash(_ context.Context) (solana.Blockhash, error) {
	var hash solana.Blockhash
	if _, err := rand.Read(hash[:]); err != nil {
		return hash, errors.Wrap(err, "error generating blockhash")
	}

	if err := p.blockhashes.Insert(base58.Encode(hash[:]), struct{}{}, 1); err != nil {
		return hash, errors.Wrap(err, "error recording blockhash")
	}
	return hash, nil
}

// GetAccount implements Chain.GetAccount
func (p *Processor) GetAccount(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	return p.ledger.GetAccount(ctx, address)
}

// GetBalance implements Chain.GetBalance
func (p *Processor) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	return p.ledger.GetBalance(ctx, address)
}

// SubmitTransaction implements Chain.SubmitTransaction. The transaction has
// been executed, and either committed or rolled back, when it returns.
func (p *Processor) SubmitTransaction(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, processorMetricsStructName, "SubmitTransaction")
	defer tracer.End()

	sig := txn.Signature()
	log := p.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": base58.Encode(sig[:]),
	})
	tracer.AddAttributes(map[string]interface{}{
		"signature":    base58.Encode(sig[:]),
		"instructions": len(txn.Message.Instructions),
	})

	start := time.Now()
	instructions, err := p.submitTransaction(ctx, txn)
	recordTransactionDuration(ctx, time.Since(start))
	if err != nil {
		log.WithError(err).Debug("transaction failed")
		tracer.OnError(err)
		recordTransactionProcessedCount(ctx, false)
		return sig, err
	}

	log.Debug("transaction committed")
	recordTransactionProcessedCount(ctx, true)
	p.recordCommittedInstructions(ctx, instructions)
	return sig, nil
}

func (p *Processor) submitTransaction(ctx context.Context, txn solana.Transaction) ([]solana.Instruction, error) {
	if len(txn.Message.Accounts) == 0 || len(txn.Message.Instructions) == 0 {
		return nil, errors.Wrap(ErrInvalidInstruction, "empty transaction")
	}

	signers, err := txn.VerifySignatures()
	if err != nil {
		return nil, errors.Wrap(ErrUnauthorized, err.Error())
	}

	payer := base58.Encode(txn.Message.Accounts[0])
	allowed, err := p.limiter.Allow(payer)
	if err != nil {
		return nil, errors.Wrap(err, "error checking rate limit")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	if _, ok := p.blockhashes.Retrieve(base58.Encode(txn.Message.RecentBlockhash[:])); !ok {
		return nil, ErrBlockhashNotFound
	}

	instructions := make([]solana.Instruction, len(txn.Message.Instructions))
	for i := range txn.Message.Instructions {
		instructions[i], err = solana.DecompileInstruction(txn.Message, i)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidInstruction, err.Error())
		}
	}

	sig := txn.Signature()
	err = p.signatures.Insert(base58.Encode(sig[:]), struct{}{}, 1)
	if err == cache.ErrKeyExists {
		return nil, ErrDuplicateTransaction
	} else if err != nil {
		return nil, errors.Wrap(err, "error recording signature")
	}

	lockKeys := make([]sync_util.LockKey, len(txn.Message.Accounts))
	writable := make(map[string]struct{})
	for i, account := range txn.Message.Accounts {
		isWritable := txn.Message.IsWritable(i)
		lockKeys[i] = sync_util.LockKey{
			Key:       account,
			Exclusive: isWritable,
		}
		if isWritable {
			writable[string(account)] = struct{}{}
		}
	}

	unlock := p.locks.LockAll(lockKeys...)
	defer unlock()

	err = p.ledger.ExecuteTx(ctx, signers, func(tx ledger.Tx) error {
		guarded := &writeGuardedTx{
			Tx:       tx,
			writable: writable,
		}

		for i, instruction := range instructions {
			if err := p.executeInstruction(ctx, guarded, instruction); err != nil {
				return &InstructionError{Index: i, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instructions, nil
}

func (p *Processor) executeInstruction(ctx context.Context, tx ledger.Tx, instruction solana.Instruction) error {
	switch {
	case bytes.Equal(instruction.Program, system.ProgramKey[:]):
		return p.executeSystemInstruction(ctx, tx, instruction)
	case bytes.Equal(instruction.Program, p.program):
	default:
		return errors.Wrapf(ErrInvalidInstruction, "unsupported program %s", base58.Encode(instruction.Program))
	}

	switch anchor_vault.GetInstructionType(instruction.Data) {
	case anchor_vault.InstructionTypeInitialize:
		accounts, metas, err := anchor_vault.DecompileInitializeInstruction(p.program, instruction)
		if err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		return p.initialize(ctx, tx, accounts, metas)
	case anchor_vault.InstructionTypeDeposit:
		accounts, args, metas, err := anchor_vault.DecompileDepositInstruction(p.program, instruction)
		if err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		return p.deposit(ctx, tx, accounts, args, metas)
	}

	return errors.Wrap(ErrInvalidInstruction, "unknown vault instruction")
}

// executeSystemInstruction supports the system program instructions needed
// to fund users.
func (p *Processor) executeSystemInstruction(ctx context.Context, tx ledger.Tx, instruction solana.Instruction) error {
	if transfer, err := system.DecompileTransfer(instruction); err == nil {
		if !instruction.Accounts[0].IsSigner {
			return ErrUnauthorized
		}
		return fromLedgerError(tx.Transfer(ctx, transfer.From, transfer.To, transfer.Lamports))
	}

	if create, err := system.DecompileCreateAccount(instruction); err == nil {
		// The new account signs too, so derived addresses can't be claimed
		// this way.
		if !instruction.Accounts[0].IsSigner || !instruction.Accounts[1].IsSigner {
			return ErrUnauthorized
		}

		_, err := tx.GetAccount(ctx, create.Address)
		if err == nil {
			return errors.Wrap(ErrAlreadyInitialized, "account already in use")
		} else if !errors.Is(err, ledger.ErrAccountNotFound) {
			return err
		}

		return fromLedgerError(tx.CreateAccount(ctx, create.Funder, create.Address, create.Owner, create.Lamports, create.Size))
	}

	return errors.Wrap(ErrInvalidInstruction, "unsupported system instruction")
}

func (p *Processor) recordCommittedInstructions(ctx context.Context, instructions []solana.Instruction) {
	for _, instruction := range instructions {
		if !bytes.Equal(instruction.Program, p.program) {
			continue
		}

		switch anchor_vault.GetInstructionType(instruction.Data) {
		case anchor_vault.InstructionTypeInitialize:
			accounts, _, err := anchor_vault.DecompileInitializeInstruction(p.program, instruction)
			if err == nil {
				recordVaultInitializedEvent(ctx, accounts.User, accounts.VaultState, accounts.Vault)
			}
		case anchor_vault.InstructionTypeDeposit:
			accounts, args, _, err := anchor_vault.DecompileDepositInstruction(p.program, instruction)
			if err == nil {
				recordDepositEvent(ctx, accounts.User, accounts.Vault, args.Amount)
			}
		}
	}
}

// writeGuardedTx rejects writes to accounts the transaction declared readonly.
type writeGuardedTx struct {
	ledger.Tx
	writable map[string]struct{}
}

func (t *writeGuardedTx) CreateAccount(ctx context.Context, payer, address, owner ed25519.PublicKey, lamports, space uint64) error {
	if err := t.checkWritable(payer, address); err != nil {
		return err
	}
	return t.Tx.CreateAccount(ctx, payer, address, owner, lamports, space)
}

func (t *writeGuardedTx) Transfer(ctx context.Context, from, to ed25519.PublicKey, lamports uint64) error {
	if err := t.checkWritable(from, to); err != nil {
		return err
	}
	return t.Tx.Transfer(ctx, from, to, lamports)
}

func (t *writeGuardedTx) WriteData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error {
	if err := t.checkWritable(address); err != nil {
		return err
	}
	return t.Tx.WriteData(ctx, program, address, data)
}

func (t *writeGuardedTx) checkWritable(addresses ...ed25519.PublicKey) error {
	for _, address := range addresses {
		if _, ok := t.writable[string(address)]; !ok {
			return errors.Wrapf(ErrInvalidInstruction, "account %s is not writable", base58.Encode(address))
		}
	}
	return nil
}
