// Package bindings descreve a superfície dos contratos consumidos pelo backend:
// o casino da game chain e o entropy consumer da oracle chain.
package bindings

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const EntropyConsumerABI = `[
	{"inputs":[{"name":"userRandomNumber","type":"bytes32"}],"name":"request","outputs":[{"type":"uint64"}],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"requestId","type":"bytes32"}],"name":"isRequestFulfilled","outputs":[{"type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"requestId","type":"bytes32"}],"name":"getRandomValue","outputs":[{"type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"entropyFee","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"requestId","type":"bytes32"},{"indexed":false,"name":"gameType","type":"uint8"},{"indexed":false,"name":"gameSubType","type":"string"},{"indexed":false,"name":"requester","type":"address"}],"name":"EntropyRequested","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"requestId","type":"bytes32"},{"indexed":false,"name":"randomValue","type":"bytes32"}],"name":"EntropyFulfilled","type":"event"}
]`

const CasinoABI = `[
	{"inputs":[{"name":"sessionId","type":"bytes32"},{"name":"won","type":"bool"},{"name":"winAmount","type":"uint256"},{"name":"requestId","type":"bytes32"}],"name":"completeGameSession","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"gameType","type":"uint8"},{"indexed":false,"name":"betAmount","type":"uint256"},{"indexed":false,"name":"timestamp","type":"uint256"}],"name":"GamePlayed","type":"event"}
]`

// GameLoggerABI cobre só o que o backend usa do MocaGameLogger
const GameLoggerABI = `[
	{"inputs":[{"name":"gameId","type":"string"},{"name":"gameType","type":"string"},{"name":"userAddress","type":"address"},{"name":"betAmount","type":"uint256"},{"name":"payoutAmount","type":"uint256"},{"name":"isWin","type":"bool"},{"name":"gameConfig","type":"string"},{"name":"resultData","type":"string"},{"name":"entropyProof","type":"string"}],"name":"logGame","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"getLoggerStats","outputs":[{"name":"totalLogs","type":"uint256"},{"name":"totalGasUsed","type":"uint256"},{"name":"lastLogger","type":"address"},{"name":"averageGasPerLog","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"gameId","type":"string"},{"indexed":true,"name":"gameType","type":"string"},{"indexed":true,"name":"userAddress","type":"address"},{"indexed":false,"name":"betAmount","type":"uint256"},{"indexed":false,"name":"payoutAmount","type":"uint256"},{"indexed":false,"name":"isWin","type":"bool"},{"indexed":false,"name":"timestamp","type":"uint256"}],"name":"GameLogged","type":"event"}
]`

var (
	entropyConsumer = mustParse(EntropyConsumerABI)
	casino          = mustParse(CasinoABI)
	gameLogger      = mustParse(GameLoggerABI)

	ErrEventMismatch = errors.New("log does not match event")
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// EntropyConsumer devolve o ABI do CasinoEntropyConsumer (oracle chain)
func EntropyConsumer() abi.ABI { return entropyConsumer }

// Casino devolve o ABI do casino (game chain)
func Casino() abi.ABI { return casino }

// GameLogger devolve o ABI do MocaGameLogger (game chain)
func GameLogger() abi.ABI { return gameLogger }

func EntropyRequestedTopic() common.Hash { return entropyConsumer.Events["EntropyRequested"].ID }
func EntropyFulfilledTopic() common.Hash { return entropyConsumer.Events["EntropyFulfilled"].ID }
func GamePlayedTopic() common.Hash       { return casino.Events["GamePlayed"].ID }

type EntropyRequested struct {
	RequestID   [32]byte
	GameType    uint8
	GameSubType string
	Requester   common.Address
}

type EntropyFulfilled struct {
	RequestID   [32]byte
	RandomValue [32]byte
	TxHash      common.Hash
	BlockNumber uint64
}

type GamePlayed struct {
	User        common.Address
	GameType    uint8
	BetAmount   *big.Int
	Timestamp   *big.Int
	TxHash      common.Hash
	BlockNumber uint64
}

func DecodeEntropyRequested(l types.Log) (EntropyRequested, error) {
	var out EntropyRequested
	values, err := unpackEvent(entropyConsumer, "EntropyRequested", l, 2)
	if err != nil {
		return out, err
	}
	out.RequestID = l.Topics[1]
	if len(values) != 3 {
		return out, fmt.Errorf("EntropyRequested: unexpected field count %d", len(values))
	}
	var ok bool
	if out.GameType, ok = values[0].(uint8); !ok {
		return out, fmt.Errorf("EntropyRequested: gameType has type %T", values[0])
	}
	if out.GameSubType, ok = values[1].(string); !ok {
		return out, fmt.Errorf("EntropyRequested: gameSubType has type %T", values[1])
	}
	if out.Requester, ok = values[2].(common.Address); !ok {
		return out, fmt.Errorf("EntropyRequested: requester has type %T", values[2])
	}
	return out, nil
}

func DecodeEntropyFulfilled(l types.Log) (EntropyFulfilled, error) {
	out := EntropyFulfilled{TxHash: l.TxHash, BlockNumber: l.BlockNumber}
	values, err := unpackEvent(entropyConsumer, "EntropyFulfilled", l, 2)
	if err != nil {
		return out, err
	}
	out.RequestID = l.Topics[1]
	if len(values) != 1 {
		return out, fmt.Errorf("EntropyFulfilled: unexpected field count %d", len(values))
	}
	rv, ok := values[0].([32]byte)
	if !ok {
		return out, fmt.Errorf("EntropyFulfilled: randomValue has type %T", values[0])
	}
	out.RandomValue = rv
	return out, nil
}

func DecodeGamePlayed(l types.Log) (GamePlayed, error) {
	out := GamePlayed{TxHash: l.TxHash, BlockNumber: l.BlockNumber}
	values, err := unpackEvent(casino, "GamePlayed", l, 2)
	if err != nil {
		return out, err
	}
	out.User = common.BytesToAddress(l.Topics[1].Bytes())
	if len(values) != 3 {
		return out, fmt.Errorf("GamePlayed: unexpected field count %d", len(values))
	}
	var ok bool
	if out.GameType, ok = values[0].(uint8); !ok {
		return out, fmt.Errorf("GamePlayed: gameType has type %T", values[0])
	}
	if out.BetAmount, ok = values[1].(*big.Int); !ok {
		return out, fmt.Errorf("GamePlayed: betAmount has type %T", values[1])
	}
	if out.Timestamp, ok = values[2].(*big.Int); !ok {
		return out, fmt.Errorf("GamePlayed: timestamp has type %T", values[2])
	}
	return out, nil
}

// unpackEvent confere topic0 e o número de topics antes de decodificar os campos não indexados
func unpackEvent(a abi.ABI, name string, l types.Log, wantTopics int) ([]interface{}, error) {
	ev, ok := a.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", name)
	}
	if len(l.Topics) != wantTopics || l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("%s: %w", name, ErrEventMismatch)
	}
	values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack data: %w", name, err)
	}
	return values, nil
}
