package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type NonceTag string

const (
	TagLatest  NonceTag = "latest"
	TagPending NonceTag = "pending"
)

// TxRequest descreve uma transação legacy já com nonce e gas definidos pelo chamador
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
	Logs        []*types.Log
}

func (r *Receipt) Succeeded() bool { return r.Status == types.ReceiptStatusSuccessful }

// Connector é a superfície uniforme de leitura/escrita sobre o JSON-RPC de uma chain,
// com a identidade de tesouraria daquela chain.
type Connector interface {
	Name() string
	Address() common.Address
	ChainID() *big.Int

	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, addr common.Address, tag NonceTag) (uint64, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// SendTransaction assina e transmite; não espera confirmação
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)

	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}
