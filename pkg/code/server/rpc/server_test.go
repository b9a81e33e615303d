package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/code/common"
	"github.com/code-payments/code-vault/pkg/code/vault"
	"github.com/code-payments/code-vault/pkg/ledger"
	memory_ledger "github.com/code-payments/code-vault/pkg/ledger/memory"
	"github.com/code-payments/code-vault/pkg/rent"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
	"github.com/code-payments/code-vault/pkg/testutil"
)

type testEnv struct {
	ctx       context.Context
	url       string
	ledger    ledger.Ledger
	processor *vault.Processor
	client    solana.Client
	service   *vault.Service
	program   *common.Account
	deriver   *anchor_vault.AddressDeriver
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	l := memory_ledger.New()
	calculator := rent.NewStaticCalculator(rent.DefaultParams)

	processor, err := vault.NewProcessor(&vault.ProcessorConfig{
		Program: anchor_vault.PROGRAM_ID,
		Ledger:  l,
		Rent:    calculator,
	}, vault.WithEnvConfigs())
	require.NoError(t, err)

	server := httptest.NewServer(NewServer(processor, l, calculator, withManualTestOverrides(overrides)))
	t.Cleanup(server.Close)

	client := solana.New(server.URL)

	service, err := vault.NewService(vault.NewRPCChain(client), anchor_vault.PROGRAM_ID, vault.WithEnvConfigs())
	require.NoError(t, err)

	program, err := common.NewAccountFromPublicKeyBytes(anchor_vault.PROGRAM_ID)
	require.NoError(t, err)

	return &testEnv{
		ctx:       context.Background(),
		url:       server.URL,
		ledger:    l,
		processor: processor,
		client:    client,
		service:   service,
		program:   program,
		deriver:   anchor_vault.NewAddressDeriver(anchor_vault.PROGRAM_ID),
	}
}

func (e *testEnv) newFundedUser(t *testing.T, lamports uint64) *common.Account {
	user := testutil.NewRandomAccount(t)

	sig, err := e.client.RequestAirdrop(user.ToPublicKey(), lamports, solana.CommitmentFinalized)
	require.NoError(t, err)

	status, err := e.client.GetSignatureStatus(sig, solana.CommitmentFinalized)
	require.NoError(t, err)
	require.Nil(t, status.ErrorResult)

	return user
}

// submitRaw submits a transaction with a fresh blockhash, bypassing the
// client side blockhash cache.
func (e *testEnv) submitRaw(t *testing.T, user *common.Account, instructions ...solana.Instruction) (solana.Signature, error) {
	blockhash, err := e.processor.GetLatestBlockhash(e.ctx)
	require.NoError(t, err)

	txn := solana.NewTransaction(user.ToPublicKey(), instructions...)
	txn.SetBlockhash(blockhash)
	require.NoError(t, txn.Sign(user.PrivateKey().ToBytes()))

	return e.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
}

func (e *testEnv) assertBalance(t *testing.T, account *common.Account, expected uint64) {
	balance, err := e.client.GetBalance(account.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, expected, balance)
}

func (e *testEnv) call(t *testing.T, body string) (result json.RawMessage, rpcErr *rpcError) {
	resp, err := http.Post(e.url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, jsonRPCVersion, decoded.JSONRPC)
	return decoded.Result, decoded.Error
}

func TestServer_VaultLifecycle(t *testing.T) {
	env := setup(t, &testOverrides{})

	user := env.newFundedUser(t, 1_000_000_000)
	env.assertBalance(t, user, 1_000_000_000)

	err := env.service.Deposit(env.ctx, user, 1_000)
	assert.ErrorIs(t, err, vault.ErrAccountNotFound)

	vaultAccounts, err := env.service.Initialize(env.ctx, user)
	require.NoError(t, err)
	env.assertBalance(t, vaultAccounts.Vault, 890_880)

	require.NoError(t, env.service.Deposit(env.ctx, user, 1_000_000))
	env.assertBalance(t, vaultAccounts.Vault, 1_890_880)

	balance, err := env.service.GetVaultBalance(env.ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 1_890_880, balance)

	info, err := env.client.GetAccountInfo(vaultAccounts.State.ToPublicKey(), solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, anchor_vault.PROGRAM_ID, info.Owner)
	assert.EqualValues(t, 960_480, info.Lamports)

	var record anchor_vault.VaultStateAccount
	require.NoError(t, record.Unmarshal(info.Data))
	assert.Equal(t, vaultAccounts.StateBump, record.StateBump)
	assert.Equal(t, vaultAccounts.VaultBump, record.VaultBump)

	_, err = env.client.GetAccountInfo(testutil.NewRandomAccount(t).ToPublicKey(), solana.CommitmentConfirmed)
	assert.Equal(t, solana.ErrNoAccountInfo, err)
}

func TestServer_TransactionErrors(t *testing.T) {
	env := setup(t, &testOverrides{})

	user := env.newFundedUser(t, 1_000_000_000)
	other := env.newFundedUser(t, 1_000_000_000)

	userVaultAccounts, err := env.service.Initialize(env.ctx, user)
	require.NoError(t, err)
	otherVaultAccounts, err := env.service.Initialize(env.ctx, other)
	require.NoError(t, err)

	_, err = env.submitRaw(t, user, userVaultAccounts.GetInitializeInstruction(env.program))
	txErr, ok := err.(*solana.TransactionError)
	require.True(t, ok)
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, solana.CustomError(anchor_vault.AccountAlreadyInUse), *txErr.InstructionError().CustomError())
	assert.ErrorIs(t, vault.ErrorFromTransactionError(txErr), vault.ErrAlreadyInitialized)

	instruction := anchor_vault.NewDepositInstruction(
		env.program.ToPublicKey(),
		&anchor_vault.DepositInstructionAccounts{
			User:       user.ToPublicKey(),
			VaultState: userVaultAccounts.State.ToPublicKey(),
			Vault:      otherVaultAccounts.Vault.ToPublicKey(),
		},
		&anchor_vault.DepositInstructionArgs{Amount: 1_000},
	)
	sig, err := env.submitRaw(t, user, instruction)
	txErr, ok = err.(*solana.TransactionError)
	require.True(t, ok)
	assert.ErrorIs(t, vault.ErrorFromTransactionError(txErr), vault.ErrDerivationMismatch)

	// Failed transactions have no status
	statuses, err := env.client.GetSignatureStatuses([]solana.Signature{sig})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Nil(t, statuses[0])

	_, err = env.submitRaw(t, user, userVaultAccounts.GetDepositInstruction(env.program, 0))
	txErr, ok = err.(*solana.TransactionError)
	require.True(t, ok)
	assert.ErrorIs(t, vault.ErrorFromTransactionError(txErr), vault.ErrInvalidAmount)

	_, err = env.submitRaw(t, user, userVaultAccounts.GetDepositInstruction(env.program, 10_000_000_000))
	txErr, ok = err.(*solana.TransactionError)
	require.True(t, ok)
	assert.ErrorIs(t, vault.ErrorFromTransactionError(txErr), vault.ErrInsufficientFunds)

	env.assertBalance(t, userVaultAccounts.Vault, 890_880)
	env.assertBalance(t, otherVaultAccounts.Vault, 890_880)
}

func TestServer_Rent(t *testing.T) {
	env := setup(t, &testOverrides{})

	calculator := rent.NewRPCCalculator(env.client)
	for size, expected := range map[uint64]uint64{
		0:                                   890_880,
		anchor_vault.VaultStateAccountSize: 960_480,
	} {
		actual, err := env.client.GetMinimumBalanceForRentExemption(size)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)

		actual, err = calculator.MinimumBalance(env.ctx, size)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
}

func TestServer_Airdrop(t *testing.T) {
	env := setup(t, &testOverrides{})
	address := testutil.NewRandomAccount(t).ToPublicKey()

	_, err := env.client.RequestAirdrop(address, 0, solana.CommitmentFinalized)
	assert.Error(t, err)

	_, err = env.client.RequestAirdrop(address, defaultMaxAirdropLamports+1, solana.CommitmentFinalized)
	assert.Error(t, err)

	balance, err := env.ledger.GetBalance(env.ctx, address)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)

	env = setup(t, &testOverrides{disableAirdrops: true})

	_, err = env.client.RequestAirdrop(address, 1_000, solana.CommitmentFinalized)
	assert.Error(t, err)
}

func TestServer_InvalidRequests(t *testing.T) {
	env := setup(t, &testOverrides{})

	for _, tc := range []struct {
		body string
		code int
	}{
		{`{`, parseErrorCode},
		{`{"jsonrpc":"1.0","id":1,"method":"getBalance"}`, invalidRequestCode},
		{`{"jsonrpc":"2.0","id":1,"method":"getBlock","params":[1]}`, methodNotFoundCode},
		{`{"jsonrpc":"2.0","id":1,"method":"getBalance"}`, invalidParamsCode},
		{`{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["invalid"]}`, invalidParamsCode},
		{`{"jsonrpc":"2.0","id":1,"method":"sendTransaction","params":["invalid"]}`, invalidParamsCode},
		{`{"jsonrpc":"2.0","id":1,"method":"sendTransaction","params":["AQ==",{"encoding":"base64"}]}`, invalidParamsCode},
		{`{"jsonrpc":"2.0","id":1,"method":"sendTransaction","params":["AQ==",{"encoding":"json"}]}`, invalidParamsCode},
	} {
		result, rpcErr := env.call(t, tc.body)
		assert.Empty(t, result, tc.body)
		if assert.NotNil(t, rpcErr, tc.body) {
			assert.Equal(t, tc.code, rpcErr.Code, tc.body)
		}
	}

	resp, err := http.Get(env.url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_TrailingConfigParams(t *testing.T) {
	env := setup(t, &testOverrides{})

	user := env.newFundedUser(t, 1_000)

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["` + user.String() + `"]}`,
		`{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["` + user.String() + `",{"commitment":"finalized"}]}`,
	} {
		result, rpcErr := env.call(t, body)
		require.Nil(t, rpcErr, body)

		var decoded struct {
			Value uint64 `json:"value"`
		}
		require.NoError(t, json.Unmarshal(result, &decoded), body)
		assert.EqualValues(t, 1_000, decoded.Value, body)
	}

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"getLatestBlockhash"}`,
		`{"jsonrpc":"2.0","id":1,"method":"getLatestBlockhash","params":[]}`,
		`{"jsonrpc":"2.0","id":1,"method":"getLatestBlockhash","params":[{"commitment":"confirmed"}]}`,
	} {
		result, rpcErr := env.call(t, body)
		require.Nil(t, rpcErr, body)

		var decoded struct {
			Value struct {
				Blockhash string `json:"blockhash"`
			} `json:"value"`
		}
		require.NoError(t, json.Unmarshal(result, &decoded), body)
		assert.NotEmpty(t, decoded.Value.Blockhash, body)
	}
}

func TestServer_ForgedSignature(t *testing.T) {
	env := setup(t, &testOverrides{})

	user := env.newFundedUser(t, 1_000_000_000)
	vaultAccounts, err := user.GetVaultAccounts(env.deriver)
	require.NoError(t, err)

	blockhash, err := env.processor.GetLatestBlockhash(env.ctx)
	require.NoError(t, err)

	txn := solana.NewTransaction(user.ToPublicKey(), vaultAccounts.GetInitializeInstruction(env.program))
	txn.SetBlockhash(blockhash)
	require.NoError(t, txn.Sign(user.PrivateKey().ToBytes()))
	txn.Signatures[0][0] ^= 0xff

	_, err = env.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	txErr, ok := err.(*solana.TransactionError)
	require.True(t, ok)
	assert.ErrorIs(t, vault.ErrorFromTransactionError(txErr), vault.ErrUnauthorized)

	exists, err := env.ledger.GetAccount(env.ctx, vaultAccounts.State.ToPublicKey())
	assert.Nil(t, exists)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
