// Package tests is the conformance suite every ledger.Ledger backend runs.
package tests

import (
	"context"
	"crypto/ed25519"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/ledger"
)

func RunTests(t *testing.T, s ledger.Ledger, teardown func()) {
	for _, tf := range []func(t *testing.T, s ledger.Ledger){
		testAirdropAndGet,
		testTransfer,
		testTransferValidation,
		testCreateAccount,
		testCreatePrefundedAccount,
		testWriteData,
		testAtomicity,
		testConcurrentTransfers,
		testConcurrentCreate,
	} {
		tf(t, s)
		teardown()
	}
}

func testAirdropAndGet(t *testing.T, s ledger.Ledger) {
	t.Run("testAirdropAndGet", func(t *testing.T) {
		ctx := context.Background()
		address := newKey(t)

		_, err := s.GetAccount(ctx, address)
		assert.Equal(t, ledger.ErrAccountNotFound, err)

		balance, err := s.GetBalance(ctx, address)
		require.NoError(t, err)
		assert.Zero(t, balance)

		require.NoError(t, s.Airdrop(ctx, address, 1_000))
		require.NoError(t, s.Airdrop(ctx, address, 500))

		account, err := s.GetAccount(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, address, account.Address)
		assert.Equal(t, ledger.SystemProgram, account.Owner)
		assert.EqualValues(t, 1_500, account.Lamports)
		assert.Empty(t, account.Data)
		assert.True(t, account.IsSystemOwned())

		assert.True(t, errors.Is(s.Airdrop(ctx, address, 0), ledger.ErrInvalidAmount))
	})
}

func testTransfer(t *testing.T, s ledger.Ledger) {
	t.Run("testTransfer", func(t *testing.T) {
		ctx := context.Background()
		from, to := newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, from, 1_000))

		require.NoError(t, s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
			return tx.Transfer(ctx, from, to, 400)
		}))
		assertBalance(t, s, from, 600)
		assertBalance(t, s, to, 400)

		created, err := s.GetAccount(ctx, to)
		require.NoError(t, err)
		assert.True(t, created.IsSystemOwned())

		// Transfers to self are a no-op on the balance.
		require.NoError(t, s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
			return tx.Transfer(ctx, from, from, 600)
		}))
		assertBalance(t, s, from, 600)

		// Effects are visible within the transaction.
		require.NoError(t, s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
			if err := tx.Transfer(ctx, from, to, 100); err != nil {
				return err
			}
			account, err := tx.GetAccount(ctx, to)
			if err != nil {
				return err
			}
			assert.EqualValues(t, 500, account.Lamports)
			return nil
		}))
		assertBalance(t, s, from, 500)
		assertBalance(t, s, to, 500)
	})
}

func testTransferValidation(t *testing.T, s ledger.Ledger) {
	t.Run("testTransferValidation", func(t *testing.T) {
		ctx := context.Background()
		from, to, program := newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, from, 1_000))

		for _, tc := range []struct {
			signers  []ed25519.PublicKey
			from     ed25519.PublicKey
			lamports uint64
			expected error
		}{
			{signers: nil, from: from, lamports: 1, expected: ledger.ErrMissingSignature},
			{signers: signers(to), from: from, lamports: 1, expected: ledger.ErrMissingSignature},
			{signers: signers(from), from: from, lamports: 0, expected: ledger.ErrInvalidAmount},
			{signers: signers(from), from: from, lamports: 1_001, expected: ledger.ErrInsufficientFunds},
			{signers: signers(to), from: to, lamports: 1, expected: ledger.ErrInsufficientFunds},
		} {
			err := s.ExecuteTx(ctx, tc.signers, func(tx ledger.Tx) error {
				return tx.Transfer(ctx, tc.from, to, tc.lamports)
			})
			assert.Equal(t, tc.expected, err)
		}
		assertBalance(t, s, from, 1_000)
		assertBalance(t, s, to, 0)

		// Accounts owned by a program can't be debited by the system.
		owned := newKey(t)
		require.NoError(t, s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, from, owned, program, 100, 0)
		}))
		err := s.ExecuteTx(ctx, signers(owned), func(tx ledger.Tx) error {
			return tx.Transfer(ctx, owned, to, 1)
		})
		assert.Equal(t, ledger.ErrInvalidOwner, err)

		err = s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
			return tx.Transfer(ctx, from, ed25519.PublicKey{1, 2, 3}, 1)
		})
		assert.Equal(t, ledger.ErrInvalidAddress, err)
	})
}

func testCreateAccount(t *testing.T, s ledger.Ledger) {
	t.Run("testCreateAccount", func(t *testing.T) {
		ctx := context.Background()
		payer, address, program := newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, payer, 2_000_000))

		err := s.ExecuteTx(ctx, nil, func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 960_480, 10)
		})
		assert.Equal(t, ledger.ErrMissingSignature, err)

		err = s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 2_000_001, 10)
		})
		assert.Equal(t, ledger.ErrInsufficientFunds, err)

		err = s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 1, ledger.MaxAccountDataSize+1)
		})
		assert.Equal(t, ledger.ErrInvalidDataSize, err)

		err = s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, payer, program, 1, 0)
		})
		assert.Equal(t, ledger.ErrAccountAlreadyExists, err)

		require.NoError(t, s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 960_480, 10)
		}))

		account, err := s.GetAccount(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, program, account.Owner)
		assert.EqualValues(t, 960_480, account.Lamports)
		assert.Equal(t, make([]byte, 10), account.Data)
		assertBalance(t, s, payer, 2_000_000-960_480)

		err = s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 960_480, 10)
		})
		assert.Equal(t, ledger.ErrAccountAlreadyExists, err)
		assertBalance(t, s, payer, 2_000_000-960_480)
	})
}

func testCreatePrefundedAccount(t *testing.T, s ledger.Ledger) {
	t.Run("testCreatePrefundedAccount", func(t *testing.T) {
		ctx := context.Background()
		payer, address, program := newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, payer, 1_000_000))
		require.NoError(t, s.Airdrop(ctx, address, 60_480))

		// Only the shortfall is paid for an address that was already sent lamports.
		require.NoError(t, s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			return tx.CreateAccount(ctx, payer, address, program, 960_480, 10)
		}))
		assertBalance(t, s, payer, 100_000)
		assertBalance(t, s, address, 960_480)

		account, err := s.GetAccount(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, program, account.Owner)
		assert.Len(t, account.Data, 10)
	})
}

func testWriteData(t *testing.T, s ledger.Ledger) {
	t.Run("testWriteData", func(t *testing.T) {
		ctx := context.Background()
		payer, address, program := newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, payer, 1_000_000))

		data := []byte{1, 2, 3, 4}
		require.NoError(t, s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			if err := tx.CreateAccount(ctx, payer, address, program, 10_000, uint64(len(data))); err != nil {
				return err
			}
			return tx.WriteData(ctx, program, address, data)
		}))

		account, err := s.GetAccount(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, data, account.Data)

		err = s.ExecuteTx(ctx, nil, func(tx ledger.Tx) error {
			return tx.WriteData(ctx, newKey(t), address, data)
		})
		assert.Equal(t, ledger.ErrInvalidOwner, err)

		err = s.ExecuteTx(ctx, nil, func(tx ledger.Tx) error {
			return tx.WriteData(ctx, program, address, []byte{1})
		})
		assert.Equal(t, ledger.ErrInvalidDataSize, err)

		err = s.ExecuteTx(ctx, nil, func(tx ledger.Tx) error {
			return tx.WriteData(ctx, program, newKey(t), data)
		})
		assert.Equal(t, ledger.ErrAccountNotFound, err)

		// Mutating returned accounts doesn't affect the ledger.
		account.Data[0] = 9
		account.Lamports = 0
		account, err = s.GetAccount(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, data, account.Data)
		assert.EqualValues(t, 10_000, account.Lamports)
	})
}

func testAtomicity(t *testing.T, s ledger.Ledger) {
	t.Run("testAtomicity", func(t *testing.T) {
		ctx := context.Background()
		payer, address, vault, program := newKey(t), newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, payer, 1_000_000))

		// The second step fails, so the first must be rolled back.
		err := s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			if err := tx.CreateAccount(ctx, payer, address, program, 960_480, 10); err != nil {
				return err
			}
			return tx.Transfer(ctx, payer, vault, 890_880)
		})
		assert.Equal(t, ledger.ErrInsufficientFunds, err)

		assertBalance(t, s, payer, 1_000_000)
		_, err = s.GetAccount(ctx, address)
		assert.Equal(t, ledger.ErrAccountNotFound, err)
		_, err = s.GetAccount(ctx, vault)
		assert.Equal(t, ledger.ErrAccountNotFound, err)

		expected := errors.New("aborted")
		err = s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
			if err := tx.Transfer(ctx, payer, vault, 1); err != nil {
				return err
			}
			return expected
		})
		assert.Equal(t, expected, err)
		assertBalance(t, s, payer, 1_000_000)
		assertBalance(t, s, vault, 0)
	})
}

func testConcurrentTransfers(t *testing.T, s ledger.Ledger) {
	t.Run("testConcurrentTransfers", func(t *testing.T) {
		ctx := context.Background()
		from, to := newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, from, 100))

		var wg sync.WaitGroup
		var mu sync.Mutex
		var succeeded, failed int
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := s.ExecuteTx(ctx, signers(from), func(tx ledger.Tx) error {
					return tx.Transfer(ctx, from, to, 10)
				})

				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
				} else {
					assert.Equal(t, ledger.ErrInsufficientFunds, err)
					failed++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 10, failed)
		assertBalance(t, s, from, 0)
		assertBalance(t, s, to, 100)
	})
}

func testConcurrentCreate(t *testing.T, s ledger.Ledger) {
	t.Run("testConcurrentCreate", func(t *testing.T) {
		ctx := context.Background()
		payer, address, program := newKey(t), newKey(t), newKey(t)
		require.NoError(t, s.Airdrop(ctx, payer, math.MaxInt32))

		var wg sync.WaitGroup
		results := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.ExecuteTx(ctx, signers(payer), func(tx ledger.Tx) error {
					return tx.CreateAccount(ctx, payer, address, program, 960_480, 10)
				})
			}()
		}
		wg.Wait()
		close(results)

		var created int
		for err := range results {
			if err == nil {
				created++
			} else {
				assert.Equal(t, ledger.ErrAccountAlreadyExists, err)
			}
		}
		assert.Equal(t, 1, created)
		assertBalance(t, s, payer, math.MaxInt32-960_480)
	})
}

func assertBalance(t *testing.T, s ledger.Ledger, address ed25519.PublicKey, expected uint64) {
	balance, err := s.GetBalance(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, expected, balance)
}

func signers(keys ...ed25519.PublicKey) []ed25519.PublicKey {
	return keys
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
