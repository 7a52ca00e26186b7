package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "entropy-backend", cfg.ServiceName)
	require.Equal(t, "0.001", cfg.EntropyFeeFallback)
	require.Equal(t, 3, cfg.NonceMaxRetries)
	require.Equal(t, uint64(500000), cfg.EntropyGasLimit)
	require.Equal(t, 30*time.Second, cfg.StatusInterval)
	require.Equal(t, "drop", cfg.SettlementFailurePolicy)
	require.Equal(t, "event", cfg.FulfillmentStrategy)
	require.False(t, cfg.AllowTxHashFallback)
	require.Equal(t, 100, cfg.FulfillmentPollLimit)
	require.Equal(t, 30*time.Second, cfg.DrainTimeout)
	require.Empty(t, cfg.GameLoggerContract)
	require.Equal(t, uint64(5000000), cfg.GameLogGasLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NONCE_MAX_RETRIES", "5")
	t.Setenv("FULFILLMENT_POLL_DELAY", "750ms")
	t.Setenv("ALLOW_TXHASH_FALLBACK", "true")
	t.Setenv("SETTLEMENT_FAILURE_POLICY", "RETRY")
	t.Setenv("GAME_CASINO_CONTRACT", "0x00000000000000000000000000000000000000aa")
	t.Setenv("FULFILLMENT_POLL_BUDGET", "7")
	t.Setenv("SHUTDOWN_DRAIN_TIMEOUT", "2s")

	cfg := Load()

	require.Equal(t, 5, cfg.NonceMaxRetries)
	require.Equal(t, 750*time.Millisecond, cfg.FulfillmentPollDelay)
	require.True(t, cfg.AllowTxHashFallback)
	require.Equal(t, "retry", cfg.SettlementFailurePolicy)
	require.Equal(t, "0x00000000000000000000000000000000000000aa", cfg.GameChain.Contract)
	require.Equal(t, 7, cfg.FulfillmentPollLimit)
	require.Equal(t, 2*time.Second, cfg.DrainTimeout)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("GAS_PRICE_GWEI", "abc")
	t.Setenv("RPC_TIMEOUT", "forever")

	cfg := Load()

	require.Equal(t, int64(1), cfg.GasPriceGwei)
	require.Equal(t, 15*time.Second, cfg.RPCTimeout)
}
