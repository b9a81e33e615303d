package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	pgutil "github.com/code-payments/code-vault/pkg/database/postgres"
	"github.com/code-payments/code-vault/pkg/ledger"
)

const (
	accountTableName = "vault__core_ledgeraccount"
)

// errConcurrentInsert indicates another transaction created the same account
// first. The ledger transaction is retried and observes the new row.
var errConcurrentInsert = errors.New("account concurrently inserted")

type accountModel struct {
	Id sql.NullInt64 `db:"id"`

	Address  string `db:"address"`
	Owner    string `db:"owner"`
	Lamports int64  `db:"lamports"`
	Data     []byte `db:"data"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toAccountModel(obj *ledger.Account) (*accountModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	if obj.Lamports > math.MaxInt64 {
		return nil, errors.Wrap(ledger.ErrInvalidAmount, "lamports exceed storable range")
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &accountModel{
		Address:  base58.Encode(obj.Address),
		Owner:    base58.Encode(obj.Owner),
		Lamports: int64(obj.Lamports),
		Data:     data,
	}, nil
}

func fromAccountModel(obj *accountModel) (*ledger.Account, error) {
	address, err := base58.Decode(obj.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}
	owner, err := base58.Decode(obj.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "invalid owner")
	}

	return &ledger.Account{
		Address:  ed25519.PublicKey(address),
		Owner:    ed25519.PublicKey(owner),
		Lamports: uint64(obj.Lamports),
		Data:     append([]byte(nil), obj.Data...),
	}, nil
}

func (m *accountModel) dbInsert(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + accountTableName + `
		(address, owner, lamports, data, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, address, owner, lamports, data, created_at, last_updated_at`

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		time.Now().UTC(),
	).StructScan(m)
	return pgutil.CheckUniqueViolation(err, errConcurrentInsert)
}

func (m *accountModel) dbUpdate(ctx context.Context, tx *sqlx.Tx) error {
	query := `UPDATE ` + accountTableName + `
		SET owner = $2, lamports = $3, data = $4, last_updated_at = $5
		WHERE address = $1
		RETURNING id, address, owner, lamports, data, created_at, last_updated_at`

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		time.Now().UTC(),
	).StructScan(m)
	if pgutil.IsCheckViolation(err) {
		return ledger.ErrInsufficientFunds
	}
	return pgutil.CheckNoRows(err, ledger.ErrAccountNotFound)
}

func dbGetAccount(ctx context.Context, q sqlx.QueryerContext, address string, forUpdate bool) (*accountModel, error) {
	query := `SELECT id, address, owner, lamports, data, created_at, last_updated_at FROM ` + accountTableName + `
		WHERE address = $1`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	res := &accountModel{}
	err := sqlx.GetContext(ctx, q, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, ledger.ErrAccountNotFound)
	}
	return res, nil
}
