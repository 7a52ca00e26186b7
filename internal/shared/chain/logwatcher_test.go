package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/internal/shared/chain/chaintest"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
)

func fulfilledAt(block uint64, id byte) types.Log {
	l := bindings.EntropyFulfilledLog(consumer, [32]byte{id}, [32]byte{0x0a})
	l.BlockNumber = block
	return l
}

func TestLogWatcherDeliversEachLogOnce(t *testing.T) {
	fake := chaintest.New("oracle", treasury)
	fake.SetHead(10)

	w := chain.NewLogWatcher(fake, nil, chain.WatchOptions{
		Addresses: []common.Address{consumer},
		Topics:    [][]common.Hash{{bindings.EntropyFulfilledTopic()}},
		MaxRange:  3,
	})

	var got []types.Log
	collect := func(l types.Log) { got = append(got, l) }

	// primeiro poll só posiciona o cursor no head
	w.PollOnce(context.Background(), collect)
	require.Empty(t, got)
	require.Equal(t, uint64(11), w.Cursor())

	fake.AddLogs(fulfilledAt(11, 1), fulfilledAt(15, 2))
	other := bindings.EntropyFulfilledLog(common.HexToAddress("0xdead"), [32]byte{3}, [32]byte{})
	other.BlockNumber = 12
	fake.AddLogs(other)

	w.PollOnce(context.Background(), collect)
	require.Len(t, got, 2)
	require.Equal(t, uint64(16), w.Cursor())

	w.PollOnce(context.Background(), collect)
	require.Len(t, got, 2)
}

func TestLogWatcherLookbackAndRetry(t *testing.T) {
	fake := chaintest.New("oracle", treasury)
	fake.AddLogs(fulfilledAt(95, 1))
	fake.SetHead(100)

	w := chain.NewLogWatcher(fake, nil, chain.WatchOptions{Lookback: 10})

	fake.FailOn(chaintest.OpFilterLogs, errors.New("rpc down"))
	var got []types.Log
	w.PollOnce(context.Background(), func(l types.Log) { got = append(got, l) })
	require.Empty(t, got)
	require.Equal(t, uint64(91), w.Cursor())

	fake.FailOn(chaintest.OpFilterLogs, nil)
	w.PollOnce(context.Background(), func(l types.Log) { got = append(got, l) })
	require.Len(t, got, 1)
}

func TestLogWatcherSkipsRemovedLogs(t *testing.T) {
	fake := chaintest.New("oracle", treasury)
	fake.SetHead(1)
	w := chain.NewLogWatcher(fake, nil, chain.WatchOptions{})
	w.PollOnce(context.Background(), func(types.Log) {})

	removed := fulfilledAt(2, 9)
	removed.Removed = true
	fake.AddLogs(removed)

	called := false
	w.PollOnce(context.Background(), func(types.Log) { called = true })
	require.False(t, called)
}

func TestLogWatcherRunStopsOnCancel(t *testing.T) {
	fake := chaintest.New("oracle", treasury)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := chain.NewLogWatcher(fake, nil, chain.WatchOptions{})
	err := w.Run(ctx, func(types.Log) {})
	require.ErrorIs(t, err, context.Canceled)
}
