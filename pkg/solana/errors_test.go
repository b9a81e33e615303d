package solana

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func decodeJSON(t *testing.T, s string) interface{} {
	var raw interface{}
	d := json.NewDecoder(bytes.NewBufferString(s))
	d.UseNumber()
	require.NoError(t, d.Decode(&raw))
	return raw
}

func TestParseTransactionError(t *testing.T) {
	e, err := ParseTransactionError(decodeJSON(t, `{"InstructionError":[2,{"Custom":3012}]}`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	require.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(3012), *e.InstructionError().CustomError())

	e, err = ParseTransactionError(decodeJSON(t, `{"InstructionError":[0,"MissingRequiredSignature"]}`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.Equal(t, InstructionErrorMissingRequiredSignature, e.InstructionError().ErrorKey())
	assert.Nil(t, e.InstructionError().CustomError())

	e, err = ParseTransactionError(decodeJSON(t, `"DuplicateSignature"`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorDuplicateSignature, e.ErrorKey())
	assert.Nil(t, e.InstructionError())
	assert.Equal(t, "DuplicateSignature", e.Error())

	e, err = ParseTransactionError(nil)
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestParseTransactionError_Invalid(t *testing.T) {
	for _, raw := range []string{
		`{"InstructionError":[0]}`,
		`{"InstructionError":["a","InvalidArgument"]}`,
		`{"InstructionError":[0,{"Custom":1,"Other":2}]}`,
		`{"A":1,"B":2}`,
		`12`,
	} {
		_, err := ParseTransactionError(decodeJSON(t, raw))
		assert.Error(t, err, raw)
	}
}

func TestTransactionError_MarshalJSON(t *testing.T) {
	for _, expected := range []string{
		`"BlockhashNotFound"`,
		`{"InstructionError":[1,"MissingRequiredSignature"]}`,
		`{"InstructionError":[0,{"Custom":6000}]}`,
	} {
		e, err := ParseTransactionError(decodeJSON(t, expected))
		require.NoError(t, err)

		actual, err := json.Marshal(e)
		require.NoError(t, err)
		assert.JSONEq(t, expected, string(actual))
	}
}

func TestParseRPCError(t *testing.T) {
	e, err := ParseRPCError(&jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data: map[string]interface{}{
			"err": decodeJSON(t, `{"InstructionError":[0,{"Custom":1}]}`),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, CustomError(1), *e.InstructionError().CustomError())

	e, err = ParseRPCError(&jsonrpc.RPCError{Data: map[string]interface{}{}})
	assert.NoError(t, err)
	assert.Nil(t, e)

	_, err = ParseRPCError(&jsonrpc.RPCError{Data: "nope"})
	assert.Error(t, err)
}
