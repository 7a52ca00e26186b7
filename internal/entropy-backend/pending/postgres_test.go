package pending

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
)

const (
	idHex   = "0x0100000000000000000000000000000000000000000000000000000000000000"
	seedHex = "0x0200000000000000000000000000000000000000000000000000000000000000"
)

func newMockJournal(t *testing.T) (*PostgresJournal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresJournal(db), mock
}

func TestPostgresEnsureSchema(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS pending_requests`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveUpserts(t *testing.T) {
	j, mock := newMockJournal(t)
	r := Request{
		RequestID:     [32]byte{1},
		OriginTxHash:  common.HexToHash("0xabc"),
		RequestTxHash: common.HexToHash("0xdef"),
		BlockNumber:   42,
		User:          common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		GameType:      game.Plinko,
		BetAmount:     big.NewInt(100),
		FeePaid:       big.NewInt(1_000_000_000_000_000),
		GameConfig:    `{"rows":16}`,
		Seed:          [32]byte{2},
		State:         StateRequested,
		CreatedAt:     time.UnixMilli(1_700_000_000_000),
	}

	mock.ExpectExec(`INSERT INTO pending_requests .* ON CONFLICT \(request_id\) DO UPDATE SET state=EXCLUDED.state`).
		WithArgs(idHex, r.OriginTxHash.Hex(), r.RequestTxHash.Hex(), int64(42), r.User.Hex(), int64(game.Plinko),
			"100", "1000000000000000", `{"rows":16}`, seedHex, false, "REQUESTED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.Save(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveWrapsError(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec(`INSERT INTO pending_requests`).WillReturnError(errors.New("connection refused"))

	err := j.Save(context.Background(), Request{RequestID: [32]byte{1}})
	require.ErrorContains(t, err, "save "+idHex)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateState(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec(`UPDATE pending_requests SET state=\$2, updated_at=now\(\) WHERE request_id=\$1`).
		WithArgs(idHex, "SETTLED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.UpdateState(context.Background(), [32]byte{1}, StateSettled))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadOpen(t *testing.T) {
	j, mock := newMockJournal(t)
	created := time.UnixMilli(1_700_000_000_000).UTC()
	cols := []string{"request_id", "origin_tx_hash", "request_tx_hash", "block_number", "user_address", "game_type",
		"bet_amount", "fee_paid", "game_config", "seed", "derived_id", "state", "created_at"}

	mock.ExpectQuery(`SELECT request_id,.* FROM pending_requests WHERE state IN \(\$1,\$2\) ORDER BY created_at`).
		WithArgs("REQUESTED", "FULFILLED").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(idHex, common.HexToHash("0xabc").Hex(), common.HexToHash("0xdef").Hex(), int64(42),
				"0x00000000000000000000000000000000000000a1", int64(2), "100", "1000", "", seedHex, true, "REQUESTED", created).
			AddRow("0x"+"03"+idHex[4:], common.HexToHash("0x1").Hex(), common.HexToHash("0x2").Hex(), int64(43),
				"0x00000000000000000000000000000000000000a2", int64(3), "7", "1000", "", seedHex, false, "FULFILLED", created))

	open, err := j.LoadOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 2)

	require.Equal(t, [32]byte{1}, open[0].RequestID)
	require.Equal(t, uint64(42), open[0].BlockNumber)
	require.Equal(t, game.GameType(2), open[0].GameType)
	require.Equal(t, "100", open[0].BetAmount.String())
	require.Equal(t, [32]byte{2}, open[0].Seed)
	require.True(t, open[0].DerivedID)
	require.Equal(t, StateRequested, open[0].State)
	require.True(t, created.Equal(open[0].CreatedAt))

	require.Equal(t, [32]byte{3}, open[1].RequestID)
	require.Equal(t, StateFulfilled, open[1].State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadOpenRejectsBadRow(t *testing.T) {
	j, mock := newMockJournal(t)
	cols := []string{"request_id", "origin_tx_hash", "request_tx_hash", "block_number", "user_address", "game_type",
		"bet_amount", "fee_paid", "game_config", "seed", "derived_id", "state", "created_at"}
	mock.ExpectQuery(`SELECT request_id`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(idHex, "", "", int64(1), "", int64(0), "not-a-number", "0", "", "", false, "REQUESTED", time.Now()))

	_, err := j.LoadOpen(context.Background())
	require.ErrorContains(t, err, "bad bet_amount")
}
