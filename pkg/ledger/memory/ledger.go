package memory

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/code-payments/code-vault/pkg/ledger"
)

type store struct {
	mu       sync.Mutex
	accounts map[string]*ledger.Account
}

// New returns a new in memory ledger.Ledger. Transactions are serialized.
func New() ledger.Ledger {
	return &store{
		accounts: make(map[string]*ledger.Account),
	}
}

// ExecuteTx implements ledger.Ledger.ExecuteTx
func (s *store) ExecuteTx(ctx context.Context, signers []ed25519.PublicKey, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &stagedState{
		base:    s.accounts,
		written: make(map[string]*ledger.Account),
	}
	if err := fn(ledger.NewTx(staged, signers)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key, account := range staged.written {
		s.accounts[key] = account
	}
	return nil
}

// GetAccount implements ledger.Ledger.GetAccount
func (s *store) GetAccount(_ context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[string(address)]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetBalance implements ledger.Ledger.GetBalance
func (s *store) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	account, err := s.GetAccount(ctx, address)
	if err == ledger.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return account.Lamports, nil
}

// Airdrop implements ledger.Ledger.Airdrop
func (s *store) Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &stagedState{
		base:    s.accounts,
		written: make(map[string]*ledger.Account),
	}
	if err := ledger.Credit(ctx, staged, address, lamports); err != nil {
		return err
	}
	for key, account := range staged.written {
		s.accounts[key] = account
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	s.accounts = make(map[string]*ledger.Account)
	s.mu.Unlock()
}

// stagedState buffers writes over the committed accounts until commit.
type stagedState struct {
	base    map[string]*ledger.Account
	written map[string]*ledger.Account
}

func (s *stagedState) Load(_ context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	if account, ok := s.written[string(address)]; ok {
		return account.Clone(), nil
	}
	if account, ok := s.base[string(address)]; ok {
		return account.Clone(), nil
	}
	return nil, ledger.ErrAccountNotFound
}

func (s *stagedState) Save(_ context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	s.written[string(account.Address)] = account.Clone()
	return nil
}
