package anchor_vault

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-vault/pkg/solana"
)

// Expected values match PublicKey.findProgramAddressSync from @solana/web3.js.
var addressVectors = []struct {
	user      string
	state     string
	stateBump uint8
	vault     string
	vaultBump uint8
}{
	{"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM", "HeGkMHsVoS7UMH3Xyo19B5BmxAJt47QAKJeJ8EgsmaYm", 255, "5uLHwukvFXPFuXAbDhaZWsD3sEvdkh34UhhyHKgci9Ja", 252},
	{"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3", "EcNUApdygWsGVcUiA6UjYYnxCmkfEejFyJR1BPUAnei6", 253, "6YY74GbAKjJGeHjuvXYuExB8tJ3VaJ8k5r7trKgDc8gJ", 254},
	{"GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP", "DxWdNQpuGjeicsDGqBTtguETkSmp9WiY1YXvR6hqrTfQ", 253, "F2KHkDG9diDCoF1JRM4t5vgNoJtLo5isFAPLceKhFQDg", 255},
	{"UKrXU5bFrTzrqqpZXs8GVDbp4xPweiM65ADXNAy3ddR", "6oB3QibPubLYopVKXxmcxHNryVx4yLr3T2srvcrGPCrV", 252, "Cc2UVJ15ddnqdrsG1CExmcRDRP8Wxw52kmHfirCsKR4k", 253},
}

func TestFindAddresses(t *testing.T) {
	deriver := NewAddressDeriver(PROGRAM_ID)
	assert.Equal(t, PROGRAM_ID, deriver.Program())

	for _, v := range addressVectors {
		user := mustBase58Decode(v.user)

		state, stateBump, err := deriver.FindVaultStateAddress(user)
		require.NoError(t, err)
		assert.Equal(t, v.state, base58.Encode(state))
		assert.Equal(t, v.stateBump, stateBump)

		vault, vaultBump, err := deriver.FindVaultAddress(state)
		require.NoError(t, err)
		assert.Equal(t, v.vault, base58.Encode(vault))
		assert.Equal(t, v.vaultBump, vaultBump)
	}
}

func TestAddressesWithBump(t *testing.T) {
	deriver := NewAddressDeriver(PROGRAM_ID)

	for _, v := range addressVectors {
		user := mustBase58Decode(v.user)
		state := mustBase58Decode(v.state)

		actual, err := deriver.VaultStateAddressWithBump(user, v.stateBump)
		require.NoError(t, err)
		assert.EqualValues(t, state, actual)

		actual, err = deriver.VaultAddressWithBump(state, v.vaultBump)
		require.NoError(t, err)
		assert.Equal(t, v.vault, base58.Encode(actual))
	}
}

func TestAddressesWithBump_NonCanonical(t *testing.T) {
	deriver := NewAddressDeriver(PROGRAM_ID)
	user := mustBase58Decode("CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3")

	// 255 and 254 land on the curve for this user.
	for _, bump := range []uint8{255, 254} {
		_, err := deriver.VaultStateAddressWithBump(user, bump)
		assert.Equal(t, solana.ErrInvalidPublicKey, err)
	}

	// 252 is a valid address, just not the canonical one.
	actual, err := deriver.VaultStateAddressWithBump(user, 252)
	require.NoError(t, err)
	assert.Equal(t, "DEnzQTESVLRQdianGQXQiHo6AhaPKfCqNtXjBqXX3UA4", base58.Encode(actual))
}

func TestAddresses_ProgramScoped(t *testing.T) {
	other := mustBase58Decode("BPFLoader1111111111111111111111111111111111")
	user := mustBase58Decode(addressVectors[0].user)

	a, _, err := NewAddressDeriver(PROGRAM_ID).FindVaultStateAddress(user)
	require.NoError(t, err)
	b, _, err := NewAddressDeriver(other).FindVaultStateAddress(user)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAddresses_InvalidKey(t *testing.T) {
	deriver := NewAddressDeriver(PROGRAM_ID)

	_, _, err := deriver.FindVaultStateAddress(make([]byte, 31))
	assert.Error(t, err)
	_, err = deriver.VaultStateAddressWithBump(nil, 255)
	assert.Error(t, err)
	_, _, err = deriver.FindVaultAddress(make([]byte, 33))
	assert.Error(t, err)
	_, err = deriver.VaultAddressWithBump(nil, 255)
	assert.Error(t, err)
}
