package pending

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_requests (
	request_id      TEXT PRIMARY KEY,
	origin_tx_hash  TEXT NOT NULL,
	request_tx_hash TEXT NOT NULL,
	block_number    BIGINT NOT NULL,
	user_address    TEXT NOT NULL,
	game_type       SMALLINT NOT NULL,
	bet_amount      NUMERIC(78,0) NOT NULL,
	fee_paid        NUMERIC(78,0) NOT NULL,
	game_config     TEXT NOT NULL DEFAULT '',
	seed            TEXT NOT NULL,
	derived_id      BOOLEAN NOT NULL,
	state           TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresJournal grava o ciclo de vida das requisições na tabela pending_requests
type PostgresJournal struct{ db *sql.DB }

func NewPostgresJournal(db *sql.DB) *PostgresJournal { return &PostgresJournal{db: db} }

// EnsureSchema cria a tabela se ainda não existir
func (p *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create pending_requests: %w", err)
	}
	return nil
}

// Save faz upsert pelo request_id
func (p *PostgresJournal) Save(ctx context.Context, r Request) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pending_requests
			(request_id,origin_tx_hash,request_tx_hash,block_number,user_address,game_type,
			 bet_amount,fee_paid,game_config,seed,derived_id,state,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (request_id) DO UPDATE SET state=EXCLUDED.state, updated_at=now()`,
		r.ID(), r.OriginTxHash.Hex(), r.RequestTxHash.Hex(), int64(r.BlockNumber), r.User.Hex(),
		int(r.GameType), bigString(r.BetAmount), bigString(r.FeePaid), r.GameConfig,
		hexutil.Encode(r.Seed[:]), r.DerivedID, r.State.String(), r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", r.ID(), err)
	}
	return nil
}

func (p *PostgresJournal) UpdateState(ctx context.Context, id [32]byte, s State) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE pending_requests SET state=$2, updated_at=now() WHERE request_id=$1`,
		IDString(id), s.String(),
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", IDString(id), err)
	}
	return nil
}

// LoadOpen devolve as requisições ainda não terminais
func (p *PostgresJournal) LoadOpen(ctx context.Context) ([]Request, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT request_id,origin_tx_hash,request_tx_hash,block_number,user_address,game_type,
		       bet_amount::text,fee_paid::text,game_config,seed,derived_id,state,created_at
		FROM pending_requests
		WHERE state IN ($1,$2)
		ORDER BY created_at`,
		StateRequested.String(), StateFulfilled.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query open requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var id, origin, reqTx, user, bet, fee, cfg, seed, state string
		var block int64
		var gameType int
		var derived bool
		var created time.Time
		if err := rows.Scan(&id, &origin, &reqTx, &block, &user, &gameType,
			&bet, &fee, &cfg, &seed, &derived, &state, &created); err != nil {
			return nil, fmt.Errorf("scan open request: %w", err)
		}
		r, err := decodeRow(id, origin, reqTx, user, bet, fee, cfg, seed, state, block, gameType, derived, created)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeRow(id, origin, reqTx, user, bet, fee, cfg, seed, state string,
	block int64, gameType int, derived bool, created time.Time) (Request, error) {
	r := Request{
		OriginTxHash:  common.HexToHash(origin),
		RequestTxHash: common.HexToHash(reqTx),
		BlockNumber:   uint64(block),
		User:          common.HexToAddress(user),
		GameType:      game.GameType(gameType),
		GameConfig:    cfg,
		DerivedID:     derived,
		CreatedAt:     created,
	}

	rid, err := hexutil.Decode(id)
	if err != nil || len(rid) != 32 {
		return Request{}, fmt.Errorf("bad request_id %q", id)
	}
	copy(r.RequestID[:], rid)

	if s, err := hexutil.Decode(seed); err == nil && len(s) == 32 {
		copy(r.Seed[:], s)
	}

	var ok bool
	if r.BetAmount, ok = new(big.Int).SetString(bet, 10); !ok {
		return Request{}, fmt.Errorf("bad bet_amount %q for %s", bet, id)
	}
	if r.FeePaid, ok = new(big.Int).SetString(fee, 10); !ok {
		r.FeePaid = new(big.Int)
	}

	if r.State, err = ParseState(state); err != nil {
		return Request{}, fmt.Errorf("%s: %w", id, err)
	}
	return r, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
