package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	pgutil "github.com/code-payments/code-vault/pkg/database/postgres"
	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/ledger/postgres/migrations"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres ledger.Ledger. The schema must already exist, see
// Migrate.
func New(db *sql.DB) ledger.Ledger {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "error setting migration dialect")
	}
	return goose.UpContext(ctx, db, ".")
}

// ExecuteTx implements ledger.Ledger.ExecuteTx
//
// Conflicting transactions are retried, so fn may be invoked more than once.
func (s *store) ExecuteTx(ctx context.Context, signers []ed25519.PublicKey, fn func(tx ledger.Tx) error) error {
	return pgutil.ExecuteRetryableTx(ctx, s.db, sql.LevelReadCommitted, isConcurrentInsert, func(tx *sqlx.Tx) error {
		return fn(ledger.NewTx(newTxState(tx), signers))
	})
}

// GetAccount implements ledger.Ledger.GetAccount
func (s *store) GetAccount(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	model, err := dbGetAccount(ctx, s.db, base58.Encode(address), false)
	if err != nil {
		return nil, err
	}
	return fromAccountModel(model)
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
	return pgutil.ExecuteRetryableTx(ctx, s.db, sql.LevelReadCommitted, isConcurrentInsert, func(tx *sqlx.Tx) error {
		return ledger.Credit(ctx, newTxState(tx), address, lamports)
	})
}

func isConcurrentInsert(err error) bool {
	return errors.Is(err, errConcurrentInsert)
}

// txState is a ledger.State over one database transaction. Loaded rows are
// locked until the transaction ends.
type txState struct {
	tx      *sqlx.Tx
	present map[string]struct{}
}

func newTxState(tx *sqlx.Tx) *txState {
	return &txState{
		tx:      tx,
		present: make(map[string]struct{}),
	}
}

func (s *txState) Load(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	encoded := base58.Encode(address)

	model, err := dbGetAccount(ctx, s.tx, encoded, true)
	if err != nil {
		return nil, err
	}
	s.present[encoded] = struct{}{}

	return fromAccountModel(model)
}

func (s *txState) Save(ctx context.Context, account *ledger.Account) error {
	model, err := toAccountModel(account)
	if err != nil {
		return err
	}

	if _, ok := s.present[model.Address]; ok {
		return model.dbUpdate(ctx, s.tx)
	}

	if err := model.dbInsert(ctx, s.tx); err != nil {
		return err
	}
	s.present[model.Address] = struct{}{}
	return nil
}
