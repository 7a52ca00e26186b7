package bindings

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Helpers que montam logs como um nó os devolveria; usados por testes e simuladores.

func EntropyRequestedLog(contract common.Address, requestID [32]byte, gameType uint8, subType string, requester common.Address) types.Log {
	data, err := entropyConsumer.Events["EntropyRequested"].Inputs.NonIndexed().Pack(gameType, subType, requester)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: contract,
		Topics:  []common.Hash{EntropyRequestedTopic(), requestID},
		Data:    data,
	}
}

func EntropyFulfilledLog(contract common.Address, requestID, randomValue [32]byte) types.Log {
	data, err := entropyConsumer.Events["EntropyFulfilled"].Inputs.NonIndexed().Pack(randomValue)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: contract,
		Topics:  []common.Hash{EntropyFulfilledTopic(), requestID},
		Data:    data,
	}
}

func GamePlayedLog(contract common.Address, user common.Address, gameType uint8, bet, ts *big.Int) types.Log {
	data, err := casino.Events["GamePlayed"].Inputs.NonIndexed().Pack(gameType, bet, ts)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: contract,
		Topics:  []common.Hash{GamePlayedTopic(), common.BytesToHash(user.Bytes())},
		Data:    data,
	}
}
