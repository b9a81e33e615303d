package vault

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/code/common"
	"github.com/code-payments/code-vault/pkg/ledger"
	memory_ledger "github.com/code-payments/code-vault/pkg/ledger/memory"
	"github.com/code-payments/code-vault/pkg/rent"
	"github.com/code-payments/code-vault/pkg/solana"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
	"github.com/code-payments/code-vault/pkg/testutil"
)

const (
	testReserve      = 890_880 // rent.MinimumBalance(0)
	testStateReserve = 960_480 // rent.MinimumBalance(10)

	testInitialBalance = 1_000_000_000
)

type testEnv struct {
	ctx       context.Context
	ledger    ledger.Ledger
	processor *Processor
	service   *Service
	program   *common.Account
	deriver   *anchor_vault.AddressDeriver
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	return setupWithRent(t, overrides, rent.NewStaticCalculator(rent.DefaultParams))
}

func setupWithRent(t *testing.T, overrides *testOverrides, calculator rent.Calculator) *testEnv {
	return setupWithConfig(t, withManualTestOverrides(overrides), calculator)
}

func setupWithConfig(t *testing.T, configProvider ConfigProvider, calculator rent.Calculator) *testEnv {
	l := memory_ledger.New()

	program, err := common.NewAccountFromPublicKeyBytes(anchor_vault.PROGRAM_ID)
	require.NoError(t, err)

	processor, err := NewProcessor(&ProcessorConfig{
		Program: program.ToPublicKey(),
		Ledger:  l,
		Rent:    calculator,
	}, configProvider)
	require.NoError(t, err)

	service, err := NewService(processor, program.ToPublicKey(), configProvider)
	require.NoError(t, err)

	return &testEnv{
		ctx:       context.Background(),
		ledger:    l,
		processor: processor,
		service:   service,
		program:   program,
		deriver:   anchor_vault.NewAddressDeriver(program.ToPublicKey()),
	}
}

func (e *testEnv) newFundedUser(t *testing.T) *common.Account {
	return testutil.NewFundedAccount(t, e.ledger, testInitialBalance)
}

func (e *testEnv) getVaultAccounts(t *testing.T, user *common.Account) *common.VaultAccounts {
	vaultAccounts, err := user.GetVaultAccounts(e.deriver)
	require.NoError(t, err)
	return vaultAccounts
}

// submit signs a transaction paid for by the first signer and executes it
func (e *testEnv) submit(t *testing.T, signers []*common.Account, instructions ...solana.Instruction) (solana.Transaction, error) {
	blockhash, err := e.processor.GetLatestBlockhash(e.ctx)
	require.NoError(t, err)

	txn := solana.NewTransaction(signers[0].ToPublicKey(), instructions...)
	txn.SetBlockhash(blockhash)

	keys := make([]ed25519.PrivateKey, len(signers))
	for i, signer := range signers {
		keys[i] = signer.PrivateKey().ToBytes()
	}
	require.NoError(t, txn.Sign(keys...))

	_, err = e.processor.SubmitTransaction(e.ctx, txn)
	return txn, err
}

func (e *testEnv) assertBalance(t *testing.T, account *common.Account, expected uint64) {
	balance, err := e.ledger.GetBalance(e.ctx, account.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, expected, balance, account.String())
}

func (e *testEnv) assertInitialized(t *testing.T, user *common.Account) {
	expected := e.getVaultAccounts(t, user)

	stateAccount, err := e.ledger.GetAccount(e.ctx, expected.State.ToPublicKey())
	require.NoError(t, err)
	assert.Equal(t, AccountTypeStateRecord, GetAccountType(e.program.ToPublicKey(), stateAccount))
	assert.Equal(t, e.program.ToPublicKey(), stateAccount.Owner)

	var record anchor_vault.VaultStateAccount
	require.NoError(t, record.Unmarshal(stateAccount.Data))
	assert.Equal(t, expected.StateBump, record.StateBump)
	assert.Equal(t, expected.VaultBump, record.VaultBump)

	actual, err := user.GetVaultAccountsWithBumps(e.deriver, record.StateBump, record.VaultBump)
	require.NoError(t, err)
	assert.Equal(t, expected.State.ToPublicKey(), actual.State.ToPublicKey())
	assert.Equal(t, expected.Vault.ToPublicKey(), actual.Vault.ToPublicKey())

	vaultAccount, err := e.ledger.GetAccount(e.ctx, expected.Vault.ToPublicKey())
	require.NoError(t, err)
	assert.Equal(t, AccountTypeVault, GetAccountType(e.program.ToPublicKey(), vaultAccount))
}

func (e *testEnv) assertNotInitialized(t *testing.T, user *common.Account) {
	vaultAccounts := e.getVaultAccounts(t, user)

	_, err := e.ledger.GetAccount(e.ctx, vaultAccounts.State.ToPublicKey())
	assert.Equal(t, ledger.ErrAccountNotFound, err)

	_, err = e.ledger.GetAccount(e.ctx, vaultAccounts.Vault.ToPublicKey())
	assert.Equal(t, ledger.ErrAccountNotFound, err)
}
