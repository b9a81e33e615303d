package pg

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	outErr := errors.New("out")

	uniqueErr := errors.Wrap(&pgconn.PgError{Code: pgerrcode.UniqueViolation}, "insert")
	assert.True(t, IsUniqueViolation(uniqueErr))
	assert.False(t, IsSerializationFailure(uniqueErr))
	assert.Equal(t, outErr, CheckUniqueViolation(uniqueErr, outErr))

	noRows := errors.Wrap(sql.ErrNoRows, "select")
	assert.True(t, IsNoRows(noRows))
	assert.Equal(t, outErr, CheckNoRows(noRows, outErr))
	assert.Equal(t, uniqueErr, CheckNoRows(uniqueErr, outErr))

	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))

	assert.False(t, IsNoRows(nil))
	assert.False(t, IsUniqueViolation(nil))
	assert.NoError(t, CheckUniqueViolation(nil, outErr))
}
