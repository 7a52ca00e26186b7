// Package settlement transforma um fulfillment em resultado de jogo e o registra na game chain.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/fulfillment"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/gamelog"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/pending"
	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/internal/shared/txsubmit"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/events"
)

var (
	// ErrCorrelationMiss: fulfillment de uma requisição que esta instância não tem (ou já liquidou)
	ErrCorrelationMiss    = errors.New("no pending request for fulfillment")
	ErrSettlementReverted = errors.New("settlement reverted")
)

type Submitter interface {
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error)
}

// Publisher recebe os eventos finais; implementações não devem bloquear por muito tempo
type Publisher interface {
	PublishSettled(ctx context.Context, e events.GameSettled) error
	PublishFailed(ctx context.Context, e events.SettlementFailed) error
}

// GameLogger grava o jogo liquidado no logger on-chain
type GameLogger interface {
	LogGame(ctx context.Context, e gamelog.Entry) (common.Hash, error)
}

type Options struct {
	GasLimit    uint64 // default 500000
	Policy      Policy
	MaxAttempts int // só com PolicyRetry
	Backoff     time.Duration
}

type Result struct {
	Request   pending.Request
	Outcome   game.Outcome
	SessionID [32]byte
	TxHash    common.Hash
	Source    fulfillment.Source
	Attempts  int
	GameLogTx common.Hash // zero sem game logger ou se o log falhou
}

type Dispatcher struct {
	conn      chain.Connector
	casino    *chain.Contract
	submitter Submitter
	table     *pending.Table
	guard     Guard
	publisher Publisher
	gameLog   GameLogger
	log       *zap.Logger
	opts      Options

	sleep func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	Conn      chain.Connector // game chain
	Casino    common.Address
	Submitter Submitter
	Table     *pending.Table
	Guard     Guard     // opcional
	Publisher Publisher  // opcional
	GameLog   GameLogger // opcional
	Log       *zap.Logger
}

func New(d Deps, opts Options) *Dispatcher {
	if opts.GasLimit == 0 {
		opts.GasLimit = 500000
	}
	if opts.Policy == "" {
		opts.Policy = PolicyDrop
	}
	if opts.Policy == PolicyDrop || opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		conn:      d.Conn,
		casino:    chain.NewContract(d.Conn, d.Casino, bindings.Casino()),
		submitter: d.Submitter,
		table:     d.Table,
		guard:     d.Guard,
		publisher: d.Publisher,
		gameLog:   d.GameLog,
		log:       log,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch liquida a requisição no máximo uma vez. Um segundo fulfillment do mesmo
// requestId devolve ErrCorrelationMiss sem efeito colateral.
func (d *Dispatcher) Dispatch(ctx context.Context, f fulfillment.Fulfillment) (*Result, error) {
	id := pending.IDString(f.RequestID)

	req, ok := d.table.Claim(ctx, f.RequestID)
	if !ok {
		d.log.Info("fulfillment without pending request, discarding",
			zap.String("request_id", id),
			zap.String("source", string(f.Source)),
		)
		return nil, fmt.Errorf("%s: %w", id, ErrCorrelationMiss)
	}

	if d.guard != nil {
		acquired, err := d.guard.Acquire(ctx, f.RequestID)
		switch {
		case err != nil:
			d.log.Warn("settle guard unavailable, relying on local claim", zap.String("request_id", id), zap.Error(err))
		case !acquired:
			d.log.Info("request already settled by another instance", zap.String("request_id", id))
			d.complete(ctx, req, pending.StateAbandoned)
			return nil, fmt.Errorf("%s: %w", id, ErrCorrelationMiss)
		}
	}

	if f.Synthetic() {
		d.log.Warn("settling with non-oracle random value", zap.String("request_id", id), zap.String("source", string(f.Source)))
	}

	outcome := game.ComputeOutcome(req.GameType, f.RandomValue, req.BetAmount)
	session := SessionID(req.User, req.GameType, req.CreatedAt.UnixMilli())
	res := &Result{Request: req, Outcome: outcome, SessionID: session, Source: f.Source}

	data, err := d.casino.Pack("completeGameSession", session, outcome.Won, outcome.WinAmount, req.RequestID)
	if err != nil {
		d.abandon(ctx, res, err)
		return res, err
	}

	// Só reenvia quando o destino da tx anterior é conhecido: não transmitida ou revertida.
	// Sem receipt a tx pode minerar mais tarde, então a próxima tentativa espera o mesmo hash.
	var inflight common.Hash
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt
		inflight, err = d.settleOnce(ctx, data, inflight)
		if err == nil {
			res.TxHash = inflight
			break
		}
		if inflight != (common.Hash{}) {
			res.TxHash = inflight
		}

		var exhausted *txsubmit.NonceExhaustedError
		if errors.As(err, &exhausted) || attempt == d.opts.MaxAttempts || ctx.Err() != nil {
			break
		}
		d.log.Warn("settlement failed, retrying",
			zap.String("request_id", id),
			zap.Int("attempt", attempt),
			zap.String("tx", inflight.Hex()),
			zap.Bool("awaiting_same_tx", inflight != (common.Hash{})),
			zap.Error(err),
		)
		if serr := d.sleep(ctx, d.opts.Backoff*time.Duration(attempt)); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		d.abandon(ctx, res, err)
		return res, fmt.Errorf("settle %s: %w", id, err)
	}

	d.complete(ctx, req, pending.StateSettled)
	d.log.Info("game settled",
		zap.String("request_id", id),
		zap.String("user", req.User.Hex()),
		zap.Stringer("game", req.GameType),
		zap.Uint64("draw", outcome.Draw),
		zap.Bool("won", outcome.Won),
		zap.String("win_amount", outcome.WinAmount.String()),
		zap.String("tx", res.TxHash.Hex()),
	)

	if d.publisher != nil {
		ev := events.GameSettled{
			EventID:          uuid.NewString(),
			RequestID:        id,
			SessionID:        common.Hash(session).Hex(),
			User:             req.User.Hex(),
			GameType:         req.GameType.String(),
			BetAmount:        req.BetAmount.String(),
			Won:              outcome.Won,
			WinAmount:        outcome.WinAmount.String(),
			Draw:             outcome.Draw,
			RandomSource:     string(f.Source),
			SettlementTxHash: res.TxHash.Hex(),
			Ts:               time.Now().UTC(),
		}
		if err := d.publisher.PublishSettled(ctx, ev); err != nil {
			d.log.Warn("publish settled event failed", zap.String("request_id", id), zap.Error(err))
		}
	}
	d.logGame(ctx, res, f)
	return res, nil
}

// logGame é auditoria: o settlement já está confirmado, então uma falha aqui só é registrada
func (d *Dispatcher) logGame(ctx context.Context, res *Result, f fulfillment.Fulfillment) {
	if d.gameLog == nil {
		return
	}
	req := res.Request
	e := gamelog.Entry{
		GameID:     req.ID(),
		GameType:   req.GameType.String(),
		User:       req.User,
		Bet:        req.BetAmount,
		Payout:     res.Outcome.WinAmount,
		Won:        res.Outcome.Won,
		GameConfig: req.GameConfig,
		Result: gamelog.Result{
			Draw:         res.Outcome.Draw,
			Won:          res.Outcome.Won,
			WinAmount:    res.Outcome.WinAmount.String(),
			SessionID:    common.Hash(res.SessionID).Hex(),
			SettlementTx: res.TxHash.Hex(),
		},
		Proof: gamelog.Proof{
			RequestID:   req.ID(),
			RandomValue: f.RandomValue.String(),
			Source:      string(f.Source),
			RequestTx:   req.RequestTxHash.Hex(),
			DerivedID:   req.DerivedID,
		},
	}
	if f.TxHash != (common.Hash{}) {
		e.Proof.FulfillTx = f.TxHash.Hex()
	}

	hash, err := d.gameLog.LogGame(context.WithoutCancel(ctx), e)
	if err != nil {
		d.log.Warn("game log failed", zap.String("request_id", req.ID()), zap.Error(err))
		return
	}
	res.GameLogTx = hash
}

// settleOnce transmite completeGameSession, ou só espera o receipt de inflight quando
// houver uma tx anterior sem destino conhecido. Devolve o hash ainda pendente (zero quando
// a tx não foi transmitida ou reverteu) junto do erro.
func (d *Dispatcher) settleOnce(ctx context.Context, data []byte, inflight common.Hash) (common.Hash, error) {
	hash := inflight
	if hash == (common.Hash{}) {
		var err error
		hash, err = d.submitter.Submit(ctx, d.casino.Address, data, nil, d.opts.GasLimit)
		if err != nil {
			return common.Hash{}, err
		}
	}
	receipt, err := d.conn.WaitForReceipt(ctx, hash)
	if err != nil {
		return hash, err
	}
	if !receipt.Succeeded() {
		return common.Hash{}, fmt.Errorf("tx %s: %w", hash.Hex(), ErrSettlementReverted)
	}
	return hash, nil
}

// abandon remove a requisição e manda o registro para a DLQ: jogo com entropia paga e sem resultado
func (d *Dispatcher) abandon(ctx context.Context, res *Result, cause error) {
	ctx = context.WithoutCancel(ctx)
	req := res.Request
	d.complete(ctx, req, pending.StateAbandoned)
	d.log.Error("settlement abandoned",
		zap.String("request_id", req.ID()),
		zap.String("user", req.User.Hex()),
		zap.String("origin_tx", req.OriginTxHash.Hex()),
		zap.Int("attempts", res.Attempts),
		zap.String("policy", string(d.opts.Policy)),
		zap.Error(cause),
	)

	if d.publisher == nil {
		return
	}
	ev := events.SettlementFailed{
		EventID:      uuid.NewString(),
		RequestID:    req.ID(),
		OriginTxHash: req.OriginTxHash.Hex(),
		User:         req.User.Hex(),
		GameType:     req.GameType.String(),
		BetAmount:    req.BetAmount.String(),
		Attempts:     res.Attempts,
		Reason:       cause.Error(),
		Ts:           time.Now().UTC(),
	}
	if err := d.publisher.PublishFailed(ctx, ev); err != nil {
		d.log.Warn("publish settlement failure failed", zap.String("request_id", req.ID()), zap.Error(err))
	}
}

func (d *Dispatcher) complete(ctx context.Context, req pending.Request, final pending.State) {
	if err := d.table.Complete(context.WithoutCancel(ctx), req.RequestID, final); err != nil {
		d.log.Error("pending transition failed",
			zap.String("request_id", req.ID()),
			zap.Stringer("state", final),
			zap.Error(err),
		)
	}
}

// SessionID = keccak256(abi.encode(address user, uint256 gameType, uint256 createdAtMillis))
func SessionID(user common.Address, gt game.GameType, createdAtMillis int64) [32]byte {
	word := func(v *big.Int) []byte { return common.LeftPadBytes(v.Bytes(), 32) }
	return crypto.Keccak256Hash(
		common.LeftPadBytes(user.Bytes(), 32),
		word(new(big.Int).SetUint64(uint64(gt))),
		word(big.NewInt(createdAtMillis)),
	)
}
