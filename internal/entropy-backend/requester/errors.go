package requester

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
)

var (
	ErrInvalidBet                  = errors.New("bet amount must be positive")
	ErrInsufficientTreasuryBalance = errors.New("insufficient treasury balance")
	ErrRequestReverted             = errors.New("entropy request reverted")
)

// InsufficientTreasuryBalanceError é fatal só para a requisição; nada é registrado
type InsufficientTreasuryBalanceError struct {
	Chain    string
	Treasury common.Address
	Balance  *big.Int
	Fee      *big.Int
}

func (e *InsufficientTreasuryBalanceError) Error() string {
	return fmt.Sprintf("treasury %s on %s holds %s, entropy fee is %s",
		e.Treasury.Hex(), e.Chain, chain.FormatEther(e.Balance), chain.FormatEther(e.Fee))
}

func (e *InsufficientTreasuryBalanceError) Is(target error) bool {
	return target == ErrInsufficientTreasuryBalance
}
