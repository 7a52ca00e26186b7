package fulfillment

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
)

// Watcher acompanha EntropyFulfilled no consumer contract
type Watcher struct {
	lw  *chain.LogWatcher
	log *zap.Logger
}

func NewWatcher(conn chain.Connector, consumer common.Address, log *zap.Logger, interval time.Duration, lookback uint64) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		lw: chain.NewLogWatcher(conn, log, chain.WatchOptions{
			Addresses: []common.Address{consumer},
			Topics:    [][]common.Hash{{bindings.EntropyFulfilledTopic()}},
			Interval:  interval,
			Lookback:  lookback,
		}),
		log: log,
	}
}

// Run envia cada fulfillment decodificado em out até ctx ser cancelado
func (w *Watcher) Run(ctx context.Context, out chan<- Fulfillment) error {
	return w.lw.Run(ctx, func(l types.Log) {
		ev, err := bindings.DecodeEntropyFulfilled(l)
		if err != nil {
			w.log.Warn("skipping undecodable EntropyFulfilled",
				zap.String("tx", l.TxHash.Hex()),
				zap.Uint64("block", l.BlockNumber),
				zap.Error(err),
			)
			return
		}

		f := Fulfillment{
			RequestID:   ev.RequestID,
			RandomValue: new(big.Int).SetBytes(ev.RandomValue[:]),
			Source:      SourceOracleEvent,
			TxHash:      ev.TxHash,
		}
		select {
		case out <- f:
		case <-ctx.Done():
		}
	})
}
