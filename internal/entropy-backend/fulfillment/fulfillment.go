// Package fulfillment detecta quando o oráculo entregou o valor aleatório de uma requisição,
// por evento EntropyFulfilled ou por consulta ao contrato.
package fulfillment

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

type Source string

const (
	SourceOracleEvent    Source = "oracle_event"
	SourceOracleView     Source = "oracle_view"
	SourceTxHashFallback Source = "txhash_fallback"
)

var ErrNotFulfilled = errors.New("entropy not fulfilled")

type Fulfillment struct {
	RequestID   [32]byte
	RandomValue *big.Int
	Source      Source
	TxHash      common.Hash
}

// Synthetic indica valor que não veio do oráculo
func (f Fulfillment) Synthetic() bool { return f.Source == SourceTxHashFallback }

const txHashModulus = 1_000_000

// TxHashRandom deriva um valor dos 4 primeiros bytes do hash da requisição, módulo 1e6.
// Não é aleatoriedade verificável.
func TxHashRandom(h common.Hash) *big.Int {
	n, err := strconv.ParseUint(h.Hex()[2:10], 16, 64)
	if err != nil {
		return new(big.Int)
	}
	return new(big.Int).SetUint64(n % txHashModulus)
}
