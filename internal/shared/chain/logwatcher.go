package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const defaultMaxRange = 2000

// LogWatcher faz polling de eth_getLogs a partir de um cursor de bloco e entrega cada
// log uma única vez. Falhas de RPC não avançam o cursor: o intervalo é relido no próximo tick.
type LogWatcher struct {
	conn      Connector
	log       *zap.Logger
	addresses []common.Address
	topics    [][]common.Hash
	interval  time.Duration
	lookback  uint64
	maxRange  uint64

	next    uint64
	started bool
}

type WatchOptions struct {
	Addresses []common.Address
	Topics    [][]common.Hash
	Interval  time.Duration
	Lookback  uint64 // blocos anteriores ao head reprocessados no start
	MaxRange  uint64
}

func NewLogWatcher(conn Connector, log *zap.Logger, opts WatchOptions) *LogWatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxRange == 0 {
		opts.MaxRange = defaultMaxRange
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LogWatcher{
		conn:      conn,
		log:       log,
		addresses: opts.Addresses,
		topics:    opts.Topics,
		interval:  opts.Interval,
		lookback:  opts.Lookback,
		maxRange:  opts.MaxRange,
	}
}

// Run bloqueia até ctx ser cancelado, chamando handle para cada log novo
func (w *LogWatcher) Run(ctx context.Context, handle func(types.Log)) error {
	w.log.Info("log watcher started", zap.String("chain", w.conn.Name()))
	defer w.log.Info("log watcher stopped", zap.String("chain", w.conn.Name()))

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		w.PollOnce(ctx, handle)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// PollOnce lê o intervalo [cursor, head] em janelas de no máximo maxRange blocos
func (w *LogWatcher) PollOnce(ctx context.Context, handle func(types.Log)) {
	head, err := w.conn.BlockNumber(ctx)
	if err != nil {
		w.log.Warn("block number failed", zap.String("chain", w.conn.Name()), zap.Error(err))
		return
	}

	if !w.started {
		w.started = true
		w.next = head + 1
		if w.lookback > 0 {
			if w.lookback > head {
				w.next = 0
			} else {
				w.next = head + 1 - w.lookback
			}
		}
	}

	for w.next <= head {
		if ctx.Err() != nil {
			return
		}
		to := w.next + w.maxRange - 1
		if to > head {
			to = head
		}

		logs, err := w.conn.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(w.next),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: w.addresses,
			Topics:    w.topics,
		})
		if err != nil {
			w.log.Warn("filter logs failed",
				zap.String("chain", w.conn.Name()),
				zap.Uint64("from", w.next),
				zap.Uint64("to", to),
				zap.Error(err),
			)
			return
		}

		for _, l := range logs {
			if l.Removed {
				continue // reorg
			}
			handle(l)
		}
		w.next = to + 1
	}
}

// Cursor devolve o próximo bloco a ser lido
func (w *LogWatcher) Cursor() uint64 { return w.next }
