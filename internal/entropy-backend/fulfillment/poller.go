package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
)

type PollerOptions struct {
	Delay time.Duration // default 3s
	// AllowTxHashFallback troca justiça por disponibilidade: sem fulfillment no prazo,
	// o valor sai do hash da tx. Exige aprovação de produto; desligado por padrão.
	AllowTxHashFallback bool
}

// Poller consulta isRequestFulfilled/getRandomValue depois de um atraso fixo
type Poller struct {
	consumer *chain.Contract
	log      *zap.Logger
	opts     PollerOptions
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewPoller(conn chain.Connector, consumer common.Address, log *zap.Logger, opts PollerOptions) *Poller {
	if opts.Delay <= 0 {
		opts.Delay = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		consumer: chain.NewContract(conn, consumer, bindings.EntropyConsumer()),
		log:      log,
		opts:     opts,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Check consulta o contrato uma vez, sem esperar
func (p *Poller) Check(ctx context.Context, requestID [32]byte) (Fulfillment, error) {
	out, err := p.consumer.Call(ctx, "isRequestFulfilled", requestID)
	if err != nil {
		return Fulfillment{}, err
	}
	done, ok := out[0].(bool)
	if !ok {
		return Fulfillment{}, fmt.Errorf("isRequestFulfilled returned %T", out[0])
	}
	if !done {
		return Fulfillment{}, ErrNotFulfilled
	}

	out, err = p.consumer.Call(ctx, "getRandomValue", requestID)
	if err != nil {
		return Fulfillment{}, err
	}
	rv, ok := out[0].([32]byte)
	if !ok {
		return Fulfillment{}, fmt.Errorf("getRandomValue returned %T", out[0])
	}
	return Fulfillment{
		RequestID:   requestID,
		RandomValue: new(big.Int).SetBytes(rv[:]),
		Source:      SourceOracleView,
	}, nil
}

// Await espera Delay e consulta o contrato. Sem resultado devolve ErrNotFulfilled,
// ou o valor sintético do hash quando AllowTxHashFallback está ligado.
func (p *Poller) Await(ctx context.Context, requestID [32]byte, requestTxHash common.Hash) (Fulfillment, error) {
	if err := p.sleep(ctx, p.opts.Delay); err != nil {
		return Fulfillment{}, err
	}

	f, err := p.Check(ctx, requestID)
	if err == nil {
		return f, nil
	}

	id := common.Hash(requestID).Hex()
	if !p.opts.AllowTxHashFallback {
		if errors.Is(err, ErrNotFulfilled) {
			return Fulfillment{}, err
		}
		return Fulfillment{}, errors.Join(ErrNotFulfilled, err)
	}

	f = Fulfillment{
		RequestID:   requestID,
		RandomValue: TxHashRandom(requestTxHash),
		Source:      SourceTxHashFallback,
		TxHash:      requestTxHash,
	}
	p.log.Warn("oracle not fulfilled in time, using tx hash fallback",
		zap.String("request_id", id),
		zap.String("request_tx", requestTxHash.Hex()),
		zap.String("random_value", f.RandomValue.String()),
		zap.NamedError("cause", err),
	)
	return f, nil
}
