// Package gamelog grava o jogo liquidado no MocaGameLogger da game chain, com a prova de entropia.
package gamelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
)

var ErrLogReverted = errors.New("game log reverted")

type Submitter interface {
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error)
}

// Result vai serializado no campo resultData
type Result struct {
	Draw         uint64 `json:"draw"`
	Won          bool   `json:"won"`
	WinAmount    string `json:"winAmount"`
	SessionID    string `json:"sessionId"`
	SettlementTx string `json:"settlementTx"`
}

// Proof vai serializado no campo entropyProof
type Proof struct {
	RequestID   string `json:"requestId"`
	RandomValue string `json:"randomValue"`
	Source      string `json:"source"`
	RequestTx   string `json:"requestTx"`
	FulfillTx   string `json:"fulfillTx,omitempty"`
	DerivedID   bool   `json:"derivedId"`
}

type Entry struct {
	GameID     string
	GameType   string
	User       common.Address
	Bet        *big.Int
	Payout     *big.Int
	Won        bool
	GameConfig string // JSON opaco; vazio vira "{}"
	Result     Result
	Proof      Proof
}

type Options struct {
	GasLimit     uint64 // default 5000000, strings longas custam caro
	MaxFieldSize int    // default 500000 bytes por campo JSON
}

type Logger struct {
	conn      chain.Connector
	contract  *chain.Contract
	submitter Submitter
	log       *zap.Logger
	opts      Options
}

func New(conn chain.Connector, addr common.Address, submitter Submitter, log *zap.Logger, opts Options) *Logger {
	if opts.GasLimit == 0 {
		opts.GasLimit = 5_000_000
	}
	if opts.MaxFieldSize <= 0 {
		opts.MaxFieldSize = 500_000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{
		conn:      conn,
		contract:  chain.NewContract(conn, addr, bindings.GameLogger()),
		submitter: submitter,
		log:       log,
		opts:      opts,
	}
}

// LogGame envia logGame e espera o receipt
func (l *Logger) LogGame(ctx context.Context, e Entry) (common.Hash, error) {
	data, err := l.pack(e)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := l.submitter.Submit(ctx, l.contract.Address, data, nil, l.opts.GasLimit)
	if err != nil {
		return common.Hash{}, fmt.Errorf("log game %s: %w", e.GameID, err)
	}
	receipt, err := l.conn.WaitForReceipt(ctx, hash)
	if err != nil {
		return hash, fmt.Errorf("log game %s: %w", e.GameID, err)
	}
	if !receipt.Succeeded() {
		return hash, fmt.Errorf("log game %s tx %s: %w", e.GameID, hash.Hex(), ErrLogReverted)
	}

	l.log.Info("game logged",
		zap.String("game_id", e.GameID),
		zap.String("game", e.GameType),
		zap.String("user", e.User.Hex()),
		zap.String("tx", hash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return hash, nil
}

func (l *Logger) pack(e Entry) ([]byte, error) {
	result, err := json.Marshal(e.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	proof, err := json.Marshal(e.Proof)
	if err != nil {
		return nil, fmt.Errorf("marshal proof: %w", err)
	}
	cfg := e.GameConfig
	if cfg == "" {
		cfg = "{}"
	}

	return l.contract.Pack("logGame",
		e.GameID,
		strings.ToUpper(e.GameType),
		e.User,
		orZero(e.Bet),
		orZero(e.Payout),
		e.Won,
		truncate(cfg, l.opts.MaxFieldSize),
		truncate(string(result), l.opts.MaxFieldSize),
		truncate(string(proof), l.opts.MaxFieldSize),
	)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// truncate corta em max bytes e marca o corte com "..."
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
