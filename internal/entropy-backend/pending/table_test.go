package pending

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
)

type memJournal struct {
	mu      sync.Mutex
	saved   map[[32]byte]Request
	updates []State
	saveErr error
}

func newMemJournal() *memJournal { return &memJournal{saved: make(map[[32]byte]Request)} }

func (m *memJournal) Save(_ context.Context, r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[r.RequestID] = r
	return nil
}

func (m *memJournal) UpdateState(_ context.Context, id [32]byte, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, s)
	if r, ok := m.saved[id]; ok {
		r.State = s
		m.saved[id] = r
	}
	return nil
}

func (m *memJournal) LoadOpen(context.Context) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.saved {
		if !r.State.Terminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

func req(b byte, user string) Request {
	return Request{
		RequestID: [32]byte{b},
		User:      common.HexToAddress(user),
		GameType:  game.Plinko,
		BetAmount: big.NewInt(int64(b) * 100),
	}
}

func TestPutRejectsDuplicate(t *testing.T) {
	tb := NewTable(nil, nil)
	ctx := context.Background()

	require.NoError(t, tb.Put(ctx, req(1, "0x01")))
	err := tb.Put(ctx, req(1, "0x02"))
	require.ErrorIs(t, err, ErrDuplicate)

	got, ok := tb.Get([32]byte{1})
	require.True(t, ok)
	require.Equal(t, common.HexToAddress("0x01"), got.User)
	require.Equal(t, StateRequested, got.State)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGetReturnsCopy(t *testing.T) {
	tb := NewTable(nil, nil)
	require.NoError(t, tb.Put(context.Background(), req(1, "0x01")))

	got, _ := tb.Get([32]byte{1})
	got.BetAmount.SetInt64(999)

	again, _ := tb.Get([32]byte{1})
	require.Equal(t, big.NewInt(100), again.BetAmount)
}

func TestClaimIsIdempotent(t *testing.T) {
	tb := NewTable(nil, nil)
	ctx := context.Background()
	require.NoError(t, tb.Put(ctx, req(1, "0x01")))

	first, ok := tb.Claim(ctx, [32]byte{1})
	require.True(t, ok)
	require.Equal(t, StateFulfilled, first.State)

	_, ok = tb.Claim(ctx, [32]byte{1})
	require.False(t, ok)

	_, ok = tb.Claim(ctx, [32]byte{9})
	require.False(t, ok)
}

func TestConcurrentClaimHasSingleWinner(t *testing.T) {
	tb := NewTable(nil, nil)
	ctx := context.Background()
	require.NoError(t, tb.Put(ctx, req(1, "0x01")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := tb.Claim(ctx, [32]byte{1}); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestCompleteRemovesEntry(t *testing.T) {
	tb := NewTable(nil, nil)
	ctx := context.Background()
	require.NoError(t, tb.Put(ctx, req(1, "0x01")))

	err := tb.Complete(ctx, [32]byte{1}, StateSettled)
	require.ErrorIs(t, err, ErrInvalidTransition, "Requested cannot jump to Settled")

	_, ok := tb.Claim(ctx, [32]byte{1})
	require.True(t, ok)
	require.NoError(t, tb.Complete(ctx, [32]byte{1}, StateSettled))
	require.Zero(t, tb.Len())

	err = tb.Complete(ctx, [32]byte{1}, StateSettled)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteRejectsNonTerminalState(t *testing.T) {
	tb := NewTable(nil, nil)
	err := tb.Complete(context.Background(), [32]byte{1}, StateFulfilled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateRequested, StateFulfilled, true},
		{StateRequested, StateAbandoned, true},
		{StateRequested, StateSettled, false},
		{StateFulfilled, StateSettled, true},
		{StateFulfilled, StateAbandoned, true},
		{StateFulfilled, StateRequested, false},
		{StateSettled, StateAbandoned, false},
		{StateAbandoned, StateSettled, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestConcurrentPutAndOutOfOrderClaims(t *testing.T) {
	tb := NewTable(nil, nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			require.NoError(t, tb.Put(ctx, req(b, "0x01")))
		}(byte(i))
	}
	wg.Wait()
	require.Equal(t, n, tb.Len())

	for i := n; i >= 1; i-- {
		got, ok := tb.Claim(ctx, [32]byte{byte(i)})
		require.True(t, ok)
		require.Equal(t, big.NewInt(int64(i)*100), got.BetAmount)
		require.NoError(t, tb.Complete(ctx, got.RequestID, StateSettled))
	}
	require.Zero(t, tb.Len())
}

func TestStaleListsOldEntries(t *testing.T) {
	tb := NewTable(nil, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }
	ctx := context.Background()

	old := req(1, "0x01")
	old.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, tb.Put(ctx, old))
	require.NoError(t, tb.Put(ctx, req(2, "0x02")))

	stale := tb.Stale(10 * time.Minute)
	require.Len(t, stale, 1)
	require.Equal(t, [32]byte{1}, stale[0].RequestID)
	require.Equal(t, 2, tb.Len())

	snap := tb.Snapshot()
	require.Equal(t, [32]byte{1}, snap[0].RequestID)
}

func TestJournalFollowsLifecycle(t *testing.T) {
	j := newMemJournal()
	tb := NewTable(j, nil)
	ctx := context.Background()

	require.NoError(t, tb.Put(ctx, req(1, "0x01")))
	_, ok := tb.Claim(ctx, [32]byte{1})
	require.True(t, ok)
	require.NoError(t, tb.Complete(ctx, [32]byte{1}, StateAbandoned))

	require.Equal(t, []State{StateFulfilled, StateAbandoned}, j.updates)
	require.Equal(t, StateAbandoned, j.saved[[32]byte{1}].State)
}

func TestJournalFailureKeepsEntry(t *testing.T) {
	j := newMemJournal()
	j.saveErr = errors.New("connection refused")
	tb := NewTable(j, nil)

	require.NoError(t, tb.Put(context.Background(), req(1, "0x01")))
	require.Equal(t, 1, tb.Len())
}

func TestRestoreReplaysRequestedAndAbandonsInterrupted(t *testing.T) {
	j := newMemJournal()
	requested := req(1, "0x01")
	requested.State = StateRequested
	interrupted := req(2, "0x02")
	interrupted.State = StateFulfilled
	settled := req(3, "0x03")
	settled.State = StateSettled
	for _, r := range []Request{requested, interrupted, settled} {
		require.NoError(t, j.Save(context.Background(), r))
	}

	tb := NewTable(j, nil)
	n, err := tb.Restore(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok := tb.Get([32]byte{1})
	require.True(t, ok)
	_, ok = tb.Get([32]byte{2})
	require.False(t, ok)
	require.Equal(t, StateAbandoned, j.saved[[32]byte{2}].State)
}

func TestParseState(t *testing.T) {
	for _, s := range []State{StateRequested, StateFulfilled, StateSettled, StateAbandoned} {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
	_, err := ParseState("LOST")
	require.Error(t, err)
}

func TestDecodeRow(t *testing.T) {
	id := "0x0100000000000000000000000000000000000000000000000000000000000000"
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	r, err := decodeRow(id, "0xaa", "0xbb", "0x00000000000000000000000000000000000000cc",
		"1000000000000000000", "1000000000000000", `{"rows":8}`, "0x01", "REQUESTED",
		42, int(game.Roulette), true, created)
	require.NoError(t, err)
	require.Equal(t, [32]byte{1}, r.RequestID)
	require.Equal(t, game.Roulette, r.GameType)
	require.Equal(t, "1000000000000000000", r.BetAmount.String())
	require.Equal(t, uint64(42), r.BlockNumber)
	require.True(t, r.DerivedID)
	require.Equal(t, StateRequested, r.State)

	_, err = decodeRow("0x01", "", "", "", "1", "0", "", "", "REQUESTED", 0, 0, false, created)
	require.Error(t, err)
}
