package txsubmit

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
)

// NonceExhaustedError é fatal para a operação: quem chama não deve tentar de novo
type NonceExhaustedError struct {
	Attempts  int
	LastNonce uint64
	Err       error
}

func (e *NonceExhaustedError) Error() string {
	return fmt.Sprintf("nonce retries exhausted after %d attempts (last nonce %d): %v", e.Attempts, e.LastNonce, e.Err)
}

func (e *NonceExhaustedError) Unwrap() error { return e.Err }

type Options struct {
	GasPrice   *big.Int // fixo, sem estimativa
	MaxRetries int
	Backoff    time.Duration
}

// Submitter envia transações de uma identidade resolvendo colisões de nonce.
// Os nós podem divergir entre os nonces "latest" e "pending", por isso os dois são consultados.
type Submitter struct {
	conn chain.Connector
	log  *zap.Logger
	opts Options

	// um envio por vez por identidade: duas goroutines não podem escolher o mesmo nonce
	mu sync.Mutex

	sleep func(ctx context.Context, d time.Duration) error
}

func New(conn chain.Connector, log *zap.Logger, opts Options) *Submitter {
	if opts.GasPrice == nil {
		opts.GasPrice = big.NewInt(1_000_000_000) // 1 gwei
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{conn: conn, log: log, opts: opts, sleep: sleepCtx}
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

// Submit envia uma única transação e devolve o hash; não espera confirmação
func (s *Submitter) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.freshNonce(ctx, 0)
	if err != nil {
		return common.Hash{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		hash, err := s.conn.SendTransaction(ctx, chain.TxRequest{
			To:       to,
			Data:     data,
			Value:    value,
			Nonce:    nonce,
			GasLimit: gasLimit,
			GasPrice: s.opts.GasPrice,
		})
		if err == nil {
			s.log.Debug("tx submitted",
				zap.String("chain", s.conn.Name()),
				zap.String("tx", hash.Hex()),
				zap.Uint64("nonce", nonce),
				zap.Int("attempt", attempt+1),
			)
			return hash, nil
		}
		lastErr = err

		if !IsNonceError(err.Error()) {
			return common.Hash{}, fmt.Errorf("submit tx: %w", err)
		}
		if attempt == s.opts.MaxRetries {
			break
		}

		if expected, ok := ParseExpectedNonce(err.Error()); ok {
			s.log.Warn("nonce rejected, using expected nonce from provider",
				zap.String("chain", s.conn.Name()),
				zap.Uint64("sent", nonce),
				zap.Uint64("expected", expected),
			)
			nonce = expected
			continue
		}

		if err := s.sleep(ctx, s.opts.Backoff); err != nil {
			return common.Hash{}, err
		}
		next, err := s.freshNonce(ctx, nonce+1)
		if err != nil {
			return common.Hash{}, err
		}
		s.log.Warn("nonce rejected without hint, refreshed",
			zap.String("chain", s.conn.Name()),
			zap.Uint64("sent", nonce),
			zap.Uint64("next", next),
			zap.Error(lastErr),
		)
		nonce = next
	}

	return common.Hash{}, &NonceExhaustedError{Attempts: s.opts.MaxRetries + 1, LastNonce: nonce, Err: lastErr}
}

// freshNonce devolve max(latest, pending, floor). Se só uma das tags responder, usa essa.
func (s *Submitter) freshNonce(ctx context.Context, floor uint64) (uint64, error) {
	addr := s.conn.Address()

	latest, errLatest := s.conn.TransactionCount(ctx, addr, chain.TagLatest)
	pending, errPending := s.conn.TransactionCount(ctx, addr, chain.TagPending)
	if errLatest != nil && errPending != nil {
		return 0, fmt.Errorf("query nonce: %w", errLatest)
	}
	if errPending != nil {
		s.log.Warn("pending nonce unavailable, using latest", zap.String("chain", s.conn.Name()), zap.Error(errPending))
	}

	n := floor
	if errLatest == nil && latest > n {
		n = latest
	}
	if errPending == nil && pending > n {
		n = pending
	}
	return n, nil
}
