package vault

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-vault/pkg/metrics"
)

const (
	vaultInitializedEventName = "VaultInitialized"
	vaultDepositEventName     = "VaultDeposit"

	transactionCommittedMetricName  = "Vault/transaction_committed"
	transactionRolledBackMetricName = "Vault/transaction_rolled_back"
	transactionDurationMetricName   = "Vault/transaction_duration_ms"
)

func recordVaultInitializedEvent(ctx context.Context, user, state, vault ed25519.PublicKey) {
	metrics.RecordEvent(ctx, vaultInitializedEventName, map[string]interface{}{
		"user":        base58.Encode(user),
		"vault_state": base58.Encode(state),
		"vault":       base58.Encode(vault),
	})
}

func recordDepositEvent(ctx context.Context, user, vault ed25519.PublicKey, amount uint64) {
	metrics.RecordEvent(ctx, vaultDepositEventName, map[string]interface{}{
		"user":   base58.Encode(user),
		"vault":  base58.Encode(vault),
		"amount": amount,
	})
}

func recordTransactionProcessedCount(ctx context.Context, committed bool) {
	if committed {
		metrics.RecordCount(ctx, transactionCommittedMetricName, 1)
	} else {
		metrics.RecordCount(ctx, transactionRolledBackMetricName, 1)
	}
}

func recordTransactionDuration(ctx context.Context, duration time.Duration) {
	metrics.RecordDuration(ctx, transactionDurationMetricName, duration)
}
