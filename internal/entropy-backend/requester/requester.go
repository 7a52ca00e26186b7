// Package requester pede entropia ao consumer contract da oracle chain e registra a requisição pendente.
package requester

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/pending"
	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
)

// Submitter é o envio nonce-safe da oracle chain
type Submitter interface {
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error)
}

// SeedSource gera a seed de 32 bytes enviada ao oráculo (entrada, não o resultado)
type SeedSource func() ([32]byte, error)

func RandomSeed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}
	return seed, nil
}

type GameRequest struct {
	OriginTxHash common.Hash
	User         common.Address
	GameType     game.GameType
	BetAmount    *big.Int
	GameConfig   string
}

type Options struct {
	GasLimit    uint64   // default 500000
	FeeFallback *big.Int // usado quando entropyFee() falha
	Seed        SeedSource
}

type Requester struct {
	conn      chain.Connector
	consumer  *chain.Contract
	submitter Submitter
	table     *pending.Table
	log       *zap.Logger
	opts      Options

	mu       sync.Mutex
	deployed bool
}

func New(conn chain.Connector, consumer common.Address, submitter Submitter, table *pending.Table, log *zap.Logger, opts Options) *Requester {
	if opts.GasLimit == 0 {
		opts.GasLimit = 500000
	}
	if opts.Seed == nil {
		opts.Seed = RandomSeed
	}
	if opts.FeeFallback == nil {
		opts.FeeFallback = new(big.Int)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Requester{
		conn:      conn,
		consumer:  chain.NewContract(conn, consumer, bindings.EntropyConsumer()),
		submitter: submitter,
		table:     table,
		log:       log,
		opts:      opts,
	}
}

// Request paga a taxa, envia request(seed) e registra a requisição pendente após a confirmação
func (r *Requester) Request(ctx context.Context, gr GameRequest) (*pending.Request, error) {
	if gr.BetAmount == nil || gr.BetAmount.Sign() <= 0 {
		return nil, ErrInvalidBet
	}
	if err := r.ensureDeployed(ctx); err != nil {
		return nil, err
	}

	seed, err := r.opts.Seed()
	if err != nil {
		return nil, err
	}

	fee := r.EntropyFee(ctx)

	// checar antes de enviar: uma tx condenada ainda consumiria um nonce
	balance, err := r.conn.Balance(ctx, r.conn.Address())
	if err != nil {
		return nil, fmt.Errorf("treasury balance: %w", err)
	}
	if balance.Cmp(fee) < 0 {
		return nil, &InsufficientTreasuryBalanceError{
			Chain:    r.conn.Name(),
			Treasury: r.conn.Address(),
			Balance:  balance,
			Fee:      fee,
		}
	}

	data, err := r.consumer.Pack("request", seed)
	if err != nil {
		return nil, err
	}
	hash, err := r.submitter.Submit(ctx, r.consumer.Address, data, fee, r.opts.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("submit entropy request: %w", err)
	}

	receipt, err := r.conn.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("wait entropy request %s: %w", hash.Hex(), err)
	}
	if !receipt.Succeeded() {
		return nil, fmt.Errorf("tx %s: %w", hash.Hex(), ErrRequestReverted)
	}

	id, derived := r.resolveRequestID(receipt, seed)

	req := pending.Request{
		RequestID:     id,
		OriginTxHash:  gr.OriginTxHash,
		RequestTxHash: hash,
		BlockNumber:   receipt.BlockNumber,
		User:          gr.User,
		GameType:      gr.GameType,
		BetAmount:     new(big.Int).Set(gr.BetAmount),
		FeePaid:       new(big.Int).Set(fee),
		GameConfig:    gr.GameConfig,
		Seed:          seed,
		DerivedID:     derived,
		CreatedAt:     time.Now(),
	}
	if err := r.table.Put(ctx, req); err != nil {
		return nil, err
	}
	// a entrada pode ser liquidada logo após o Put; devolve a cópia local, não a da tabela
	req.State = pending.StateRequested

	r.log.Info("entropy requested",
		zap.String("request_id", req.ID()),
		zap.String("user", gr.User.Hex()),
		zap.Stringer("game", gr.GameType),
		zap.String("fee", chain.FormatEther(fee)),
		zap.String("tx", hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Bool("derived_id", derived),
	)
	return &req, nil
}

// EntropyFee lê a taxa atual do contrato; em falha usa o fallback configurado
func (r *Requester) EntropyFee(ctx context.Context) *big.Int {
	out, err := r.consumer.Call(ctx, "entropyFee")
	if err == nil && len(out) == 1 {
		if fee, ok := out[0].(*big.Int); ok {
			return fee
		}
	}
	r.log.Warn("entropy fee read failed, using fallback",
		zap.String("fallback", chain.FormatEther(r.opts.FeeFallback)),
		zap.Error(err),
	)
	return new(big.Int).Set(r.opts.FeeFallback)
}

func (r *Requester) ensureDeployed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deployed {
		return nil
	}
	if err := r.consumer.EnsureDeployed(ctx); err != nil {
		return fmt.Errorf("entropy consumer: %w", err)
	}
	r.deployed = true
	return nil
}

// resolveRequestID procura EntropyRequested nos logs do receipt; sem ele, deriva o id da seed e do bloco
func (r *Requester) resolveRequestID(receipt *chain.Receipt, seed [32]byte) ([32]byte, bool) {
	for _, l := range receipt.Logs {
		if l == nil || l.Address != r.consumer.Address {
			continue
		}
		if len(l.Topics) == 0 || l.Topics[0] != bindings.EntropyRequestedTopic() {
			continue
		}
		ev, err := bindings.DecodeEntropyRequested(*l)
		if err != nil {
			r.log.Warn("undecodable EntropyRequested log", zap.String("tx", receipt.TxHash.Hex()), zap.Error(err))
			continue
		}
		return ev.RequestID, false
	}

	id := DerivedRequestID(seed, receipt.BlockNumber)
	r.log.Warn("EntropyRequested not found in receipt, using derived id",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.String("request_id", pending.IDString(id)),
	)
	return id, true
}

// DerivedRequestID = keccak256(abi.encode(bytes32 seed, uint256 blockNumber))
func DerivedRequestID(seed [32]byte, blockNumber uint64) [32]byte {
	block := common.LeftPadBytes(new(big.Int).SetUint64(blockNumber).Bytes(), 32)
	return crypto.Keccak256Hash(seed[:], block)
}
