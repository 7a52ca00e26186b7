package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// ParseEther converte "0.001" em wei; frações abaixo de 1 wei são rejeitadas
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse ether %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse ether %q: negative amount", s)
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("parse ether %q: more than %d decimals", s, etherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther é usado só em logs e mensagens de erro
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

func Gwei(n int64) *big.Int {
	return decimal.NewFromInt(n).Shift(9).BigInt()
}
