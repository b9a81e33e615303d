package vault

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/cache"
	"github.com/code-payments/code-vault/pkg/code/common"
	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/metrics"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

const (
	serviceMetricsStructName = "vault.service"

	vaultAccountsCacheSize = 10_000
)

// Service is the entry point for users to operate their vaults. It builds,
// signs and submits vault transactions to a Chain.
type Service struct {
	log     *logrus.Entry
	conf    *conf
	chain   Chain
	program *common.Account
	deriver *anchor_vault.AddressDeriver

	// Vault accounts by owner, resolved from state records. They never change
	// once initialized.
	vaultAccounts cache.Cache
}

func NewService(chain Chain, program ed25519.PublicKey, configProvider ConfigProvider) (*Service, error) {
	programAccount, err := common.NewAccountFromPublicKeyBytes(program)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}

	return &Service{
		log:           logrus.StandardLogger().WithField("type", "vault/service"),
		conf:          configProvider(),
		chain:         chain,
		program:       programAccount,
		deriver:       anchor_vault.NewAddressDeriver(programAccount.ToPublicKey()),
		vaultAccounts: cache.NewCache(vaultAccountsCacheSize),
	}, nil
}

// Initialize creates and funds the user's vault.
func (s *Service) Initialize(ctx context.Context, user *common.Account) (*common.VaultAccounts, error) {
	tracer := metrics.TraceMethodCall(ctx, serviceMetricsStructName, "Initialize")
	defer tracer.End()

	log := s.log.WithField("method", "Initialize")

	vaultAccounts, err := s.initialize(ctx, user)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Debug("failure initializing vault")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"user":        user.String(),
		"vault_state": vaultAccounts.State.String(),
		"vault":       vaultAccounts.Vault.String(),
	}).Debug("vault initialized")
	return vaultAccounts, nil
}

func (s *Service) initialize(ctx context.Context, user *common.Account) (*common.VaultAccounts, error) {
	if err := checkSigner(user); err != nil {
		return nil, err
	}

	vaultAccounts, err := user.GetVaultAccounts(s.deriver)
	if err != nil {
		return nil, err
	}

	_, err = s.submit(ctx, user, vaultAccounts.GetInitializeInstruction(s.program))
	if err != nil {
		return nil, err
	}

	s.cacheVaultAccounts(vaultAccounts)
	return vaultAccounts, nil
}

// Deposit moves amount from the user into their vault.
func (s *Service) Deposit(ctx context.Context, user *common.Account, amount uint64) error {
	tracer := metrics.TraceMethodCall(ctx, serviceMetricsStructName, "Deposit")
	defer tracer.End()

	log := s.log.WithFields(logrus.Fields{
		"method": "Deposit",
		"amount": amount,
	})

	err := s.deposit(ctx, user, amount)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Debug("failure depositing into vault")
		return err
	}

	log.WithField("user", user.String()).Debug("deposited into vault")
	return nil
}

func (s *Service) deposit(ctx context.Context, user *common.Account, amount uint64) error {
	if err := checkSigner(user); err != nil {
		return err
	}

	vaultAccounts, err := s.GetVaultAccounts(ctx, user)
	if err != nil {
		return err
	}

	_, err = s.submit(ctx, user, vaultAccounts.GetDepositInstruction(s.program, amount))
	return err
}

// GetVaultAccounts resolves the user's vault accounts from their state
// record, re-deriving addresses with the cached bumps. It returns
// ErrAccountNotFound before initialization.
func (s *Service) GetVaultAccounts(ctx context.Context, user *common.Account) (*common.VaultAccounts, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if cached, ok := s.vaultAccounts.Retrieve(user.PublicKey().ToBase58()); ok {
		vaultAccounts := *cached.(*common.VaultAccounts)
		vaultAccounts.Owner = user
		return &vaultAccounts, nil
	}

	// The state address is located with a search, like clients do. Only the
	// vault program's flows are held to cached bumps.
	stateAddress, _, err := s.deriver.FindVaultStateAddress(user.ToPublicKey())
	if err != nil {
		return nil, errors.Wrap(err, "error finding vault state address")
	}

	account, err := s.chain.GetAccount(ctx, stateAddress)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting vault state")
	}

	record := toStateRecord(s.program.ToPublicKey(), account)
	if record == nil {
		return nil, errors.Wrap(ErrDerivationMismatch, "account is not a vault state")
	}

	vaultAccounts, err := user.GetVaultAccountsWithBumps(s.deriver, record.StateBump, record.VaultBump)
	if err != nil {
		return nil, errors.Wrap(ErrDerivationMismatch, err.Error())
	}
	if !bytes.Equal(vaultAccounts.State.ToPublicKey(), stateAddress) {
		return nil, errors.Wrap(ErrDerivationMismatch, "vault state address")
	}

	s.cacheVaultAccounts(vaultAccounts)
	return vaultAccounts, nil
}

// GetVaultBalance returns the balance of the user's vault.
func (s *Service) GetVaultBalance(ctx context.Context, user *common.Account) (uint64, error) {
	vaultAccounts, err := s.GetVaultAccounts(ctx, user)
	if err != nil {
		return 0, err
	}

	return s.chain.GetBalance(ctx, vaultAccounts.Vault.ToPublicKey())
}

func (s *Service) submit(ctx context.Context, user *common.Account, instructions ...solana.Instruction) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, s.conf.submitTimeout.Get(ctx))
	defer cancel()

	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error getting latest blockhash")
	}

	txn := solana.NewTransaction(user.ToPublicKey(), instructions...)
	txn.SetBlockhash(blockhash)
	if err := user.SignTransaction(&txn); err != nil {
		return solana.Signature{}, errors.Wrap(err, "error signing transaction")
	}

	return s.chain.SubmitTransaction(ctx, txn)
}

func (s *Service) cacheVaultAccounts(vaultAccounts *common.VaultAccounts) {
	owner := vaultAccounts.Owner.PublicOnly()

	cached := *vaultAccounts
	cached.Owner = owner

	// Concurrent resolutions for an owner yield identical accounts.
	_ = s.vaultAccounts.Insert(owner.PublicKey().ToBase58(), &cached, 1)
}

func checkSigner(user *common.Account) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if !user.CanSign() {
		return errors.Wrap(ErrUnauthorized, "user private key is required")
	}
	return nil
}
