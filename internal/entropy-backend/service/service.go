// Package service conecta as duas chains ao pipeline game -> entropy -> settlement.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/fulfillment"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/pending"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/requester"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/settlement"
	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/bindings"
	"github.com/radieske/entropy-casino-backend/pkg/contracts/events"
)

// Estratégias de detecção de fulfillment
const (
	StrategyEvent = "event"
	StrategyPoll  = "poll"
	StrategyBoth  = "both"
)

var ErrAlreadyRunning = errors.New("service already running")

type EntropyRequester interface {
	Request(ctx context.Context, gr requester.GameRequest) (*pending.Request, error)
}

type FulfillmentPoller interface {
	Check(ctx context.Context, requestID [32]byte) (fulfillment.Fulfillment, error)
	Await(ctx context.Context, requestID [32]byte, requestTxHash common.Hash) (fulfillment.Fulfillment, error)
}

type SettlementDispatcher interface {
	Dispatch(ctx context.Context, f fulfillment.Fulfillment) (*settlement.Result, error)
}

type RequestPublisher interface {
	PublishRequested(ctx context.Context, e events.EntropyRequested) error
}

type Deps struct {
	GameChain   chain.Connector
	OracleChain chain.Connector
	Casino      common.Address
	Consumer    common.Address

	Table      *pending.Table
	Requester  EntropyRequester
	Poller     FulfillmentPoller // obrigatório para poll/both; no event só reconcilia o que foi restaurado
	Dispatcher SettlementDispatcher
	Publisher  RequestPublisher // opcional

	Log *zap.Logger
}

// Hooks para métricas; qualquer campo pode ser nil
type Hooks struct {
	OnGame      func()
	OnRequested func()
	OnSettled   func(result string) // settled | abandoned
	OnError     func(stage string)
	OnStatus    func(Status)
}

type Options struct {
	Strategy        string
	LogPollInterval time.Duration
	LogLookback     uint64
	StatusInterval  time.Duration // default 30s
	StaleAfter      time.Duration // só diagnóstico, default 10m
	PollAttempts    int           // rodadas de Await por requisição no modo poll, default 100
	DrainTimeout    time.Duration // prazo dos handlers em andamento no Stop, default 30s
	Hooks           Hooks
}

type Status struct {
	Running        bool
	Strategy       string
	Pending        int
	Stale          int
	GameTreasury   common.Address
	OracleTreasury common.Address
}

// Service é criado uma vez no main e recebe todas as dependências prontas
type Service struct {
	d    Deps
	opts Options
	log  *zap.Logger

	mu             sync.Mutex
	running        bool
	cancel         context.CancelFunc // watchers e status
	cancelHandlers context.CancelFunc
	loops          sync.WaitGroup
	handlers       sync.WaitGroup

	// fulfillments que chegaram antes do registro da requisição (callback mais rápido que o receipt)
	earlyMu sync.Mutex
	early   map[[32]byte]parked
}

type parked struct {
	f  fulfillment.Fulfillment
	at time.Time
}

func New(d Deps, opts Options) (*Service, error) {
	if d.GameChain == nil || d.OracleChain == nil || d.Table == nil || d.Requester == nil || d.Dispatcher == nil {
		return nil, errors.New("service: missing dependency")
	}
	switch opts.Strategy {
	case "":
		opts.Strategy = StrategyEvent
	case StrategyEvent:
	case StrategyPoll, StrategyBoth:
		if d.Poller == nil {
			return nil, fmt.Errorf("service: strategy %q requires a poller", opts.Strategy)
		}
	default:
		return nil, fmt.Errorf("service: unknown fulfillment strategy %q", opts.Strategy)
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 30 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 100
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 30 * time.Second
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{d: d, opts: opts, log: d.Log, early: make(map[[32]byte]parked)}, nil
}

// Start sobe os watchers das duas chains e o log de status; não bloqueia.
// Requisições já presentes na tabela (restauradas do journal) são reconciliadas com o oráculo.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	// handlers não herdam o cancelamento do chamador: uma tx já transmitida precisa do receipt
	runCtx, cancel := context.WithCancel(ctx)
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.cancelHandlers = cancelHandlers
	s.running = true

	restored := s.d.Table.Snapshot()

	games := chain.NewLogWatcher(s.d.GameChain, s.log.Named("game-watcher"), chain.WatchOptions{
		Addresses: []common.Address{s.d.Casino},
		Topics:    [][]common.Hash{{bindings.GamePlayedTopic()}},
		Interval:  s.opts.LogPollInterval,
		Lookback:  s.opts.LogLookback,
	})
	s.goLoop(func() { _ = games.Run(runCtx, func(l types.Log) { s.onGameLog(handlerCtx, l) }) })

	if s.opts.Strategy != StrategyPoll {
		ch := make(chan fulfillment.Fulfillment, 64)
		lookback := s.fulfillmentLookback(ctx, restored)
		w := fulfillment.NewWatcher(s.d.OracleChain, s.d.Consumer, s.log.Named("fulfillment-watcher"), s.opts.LogPollInterval, lookback)
		s.goLoop(func() { _ = w.Run(runCtx, ch) })
		s.goLoop(func() {
			for {
				select {
				case <-runCtx.Done():
					return
				case f := <-ch:
					s.spawn("settle", func() { s.onFulfillment(handlerCtx, f) })
				}
			}
		})
	}

	s.goLoop(func() { s.statusLoop(runCtx) })
	s.reconcile(handlerCtx, restored)

	s.log.Info("entropy backend started",
		zap.String("strategy", s.opts.Strategy),
		zap.String("game_chain", s.d.GameChain.Name()),
		zap.String("oracle_chain", s.d.OracleChain.Name()),
		zap.String("game_treasury", s.d.GameChain.Address().Hex()),
		zap.String("oracle_treasury", s.d.OracleChain.Address().Hex()),
		zap.Int("restored", len(restored)),
	)
	return nil
}

// Stop cancela os watchers e espera os handlers em andamento por até DrainTimeout;
// depois disso os handlers restantes são cancelados. Pode ser chamado mais de uma vez.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	cancelHandlers := s.cancelHandlers
	s.mu.Unlock()

	// sem watchers rodando nenhum handler novo é criado
	s.loops.Wait()

	drained := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(drained)
	}()
	t := time.NewTimer(s.opts.DrainTimeout)
	defer t.Stop()
	select {
	case <-drained:
	case <-t.C:
		s.log.Warn("drain timeout, cancelling in-flight handlers", zap.Duration("timeout", s.opts.DrainTimeout))
		cancelHandlers()
		<-drained
	}
	cancelHandlers()
	s.log.Info("entropy backend stopped", zap.Int("pending", s.d.Table.Len()))
}

func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return Status{
		Running:        running,
		Strategy:       s.opts.Strategy,
		Pending:        s.d.Table.Len(),
		Stale:          len(s.d.Table.Stale(s.opts.StaleAfter)),
		GameTreasury:   s.d.GameChain.Address(),
		OracleTreasury: s.d.OracleChain.Address(),
	}
}

// HandleGame executa o pipeline de um jogo: request -> (poll) -> settlement
func (s *Service) HandleGame(ctx context.Context, ev bindings.GamePlayed) {
	s.hook(s.opts.Hooks.OnGame)

	gt := game.GameType(ev.GameType)
	req, err := s.d.Requester.Request(ctx, requester.GameRequest{
		OriginTxHash: ev.TxHash,
		User:         ev.User,
		GameType:     gt,
		BetAmount:    ev.BetAmount,
	})
	if err != nil {
		s.fail("request", err,
			zap.String("origin_tx", ev.TxHash.Hex()),
			zap.String("user", ev.User.Hex()),
			zap.Stringer("game", gt),
		)
		return
	}
	s.hook(s.opts.Hooks.OnRequested)
	s.publishRequested(ctx, req)

	if f, ok := s.takeEarly(req.RequestID); ok {
		s.settle(ctx, f)
		return
	}
	if s.opts.Strategy == StrategyEvent {
		return
	}
	s.poll(ctx, *req)
}

// poll consulta o oráculo até o fulfillment ou até PollAttempts rodadas. No modo both uma
// rodada basta e o watcher de eventos cobre o resto; no modo poll a requisição esgotada
// fica na tabela e aparece como stale.
func (s *Service) poll(ctx context.Context, req pending.Request) {
	attempts := s.opts.PollAttempts
	if s.opts.Strategy == StrategyBoth {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		var f fulfillment.Fulfillment
		f, err = s.d.Poller.Await(ctx, req.RequestID, req.RequestTxHash)
		if err == nil {
			s.settle(ctx, f)
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.log.Debug("not fulfilled yet", zap.String("request_id", req.ID()), zap.Int("attempt", i), zap.Error(err))
	}

	if s.opts.Strategy == StrategyBoth {
		s.log.Info("not fulfilled yet, waiting for event", zap.String("request_id", req.ID()), zap.Error(err))
		return
	}
	s.fail("poll", err,
		zap.String("request_id", req.ID()),
		zap.Int("attempts", attempts),
		zap.Bool("derived_id", req.DerivedID),
	)
}

// reconcile retoma as requisições restauradas: uma consulta ao oráculo liquida as que foram
// atendidas com o processo fora do ar; no modo poll as demais voltam ao polling.
func (s *Service) reconcile(ctx context.Context, restored []pending.Request) {
	if s.d.Poller == nil {
		return
	}
	for _, req := range restored {
		if req.State != pending.StateRequested {
			continue
		}
		req := req
		s.spawn("reconcile", func() {
			f, err := s.d.Poller.Check(ctx, req.RequestID)
			if err == nil {
				s.settle(ctx, f)
				return
			}
			if !errors.Is(err, fulfillment.ErrNotFulfilled) {
				s.log.Warn("reconcile check failed", zap.String("request_id", req.ID()), zap.Error(err))
			}
			if s.opts.Strategy == StrategyPoll {
				s.poll(ctx, req)
			}
		})
	}
}

// fulfillmentLookback recua o watcher de EntropyFulfilled até o bloco da requisição
// restaurada mais antiga, para ler os eventos emitidos durante a parada
func (s *Service) fulfillmentLookback(ctx context.Context, restored []pending.Request) uint64 {
	lookback := s.opts.LogLookback
	var oldest uint64
	for _, r := range restored {
		if r.BlockNumber > 0 && (oldest == 0 || r.BlockNumber < oldest) {
			oldest = r.BlockNumber
		}
	}
	if oldest == 0 {
		return lookback
	}
	head, err := s.d.OracleChain.BlockNumber(ctx)
	if err != nil {
		s.log.Warn("block number failed, keeping configured lookback", zap.Error(err))
		return lookback
	}
	if head >= oldest && head-oldest+1 > lookback {
		lookback = head - oldest + 1
	}
	return lookback
}

func (s *Service) onGameLog(ctx context.Context, l types.Log) {
	ev, err := bindings.DecodeGamePlayed(l)
	if err != nil {
		s.fail("decode", err, zap.String("tx", l.TxHash.Hex()), zap.Uint64("block", l.BlockNumber))
		return
	}
	s.spawn("game", func() { s.HandleGame(ctx, ev) })
}

// onFulfillment trata um EntropyFulfilled. Se a requisição ainda não foi registrada,
// o evento fica estacionado até HandleGame registrá-la ou até expirar.
func (s *Service) onFulfillment(ctx context.Context, f fulfillment.Fulfillment) {
	if s.settle(ctx, f) {
		return
	}
	s.earlyMu.Lock()
	s.early[f.RequestID] = parked{f: f, at: time.Now()}
	s.earlyMu.Unlock()

	// o registro pode ter acontecido entre o Claim e o estacionamento
	if _, ok := s.d.Table.Get(f.RequestID); ok {
		if pf, ok := s.takeEarly(f.RequestID); ok {
			s.settle(ctx, pf)
		}
	}
}

func (s *Service) takeEarly(id [32]byte) (fulfillment.Fulfillment, bool) {
	s.earlyMu.Lock()
	defer s.earlyMu.Unlock()
	p, ok := s.early[id]
	if ok {
		delete(s.early, id)
	}
	return p.f, ok
}

func (s *Service) pruneEarly(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	s.earlyMu.Lock()
	defer s.earlyMu.Unlock()
	for id, p := range s.early {
		if p.at.Before(cutoff) {
			delete(s.early, id)
		}
	}
	return len(s.early)
}

// settle devolve false só em correlation miss
func (s *Service) settle(ctx context.Context, f fulfillment.Fulfillment) bool {
	_, err := s.d.Dispatcher.Dispatch(ctx, f)
	switch {
	case errors.Is(err, settlement.ErrCorrelationMiss):
		// o dispatcher já registrou; não é erro
		return false
	case err != nil:
		s.hookResult("abandoned")
		s.fail("settle", err, zap.String("request_id", pending.IDString(f.RequestID)))
	default:
		s.hookResult("settled")
	}
	return true
}

func (s *Service) publishRequested(ctx context.Context, req *pending.Request) {
	if s.d.Publisher == nil {
		return
	}
	e := events.EntropyRequested{
		EventID:       uuid.NewString(),
		RequestID:     req.ID(),
		DerivedID:     req.DerivedID,
		OriginTxHash:  req.OriginTxHash.Hex(),
		RequestTxHash: req.RequestTxHash.Hex(),
		BlockNumber:   req.BlockNumber,
		UserSeed:      common.Hash(req.Seed).Hex(),
		User:          req.User.Hex(),
		GameType:      req.GameType.String(),
		BetAmount:     req.BetAmount.String(),
		FeePaid:       req.FeePaid.String(),
		GameConfig:    req.GameConfig,
		Network:       s.d.OracleChain.Name(),
		Ts:            time.Now().UTC(),
	}
	if err := s.d.Publisher.PublishRequested(ctx, e); err != nil {
		s.log.Warn("publish entropy requested failed", zap.String("request_id", e.RequestID), zap.Error(err))
	}
}

func (s *Service) statusLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.StatusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := s.Status()
			early := s.pruneEarly(s.opts.StaleAfter)
			s.log.Info("status",
				zap.Bool("running", st.Running),
				zap.Int("pending", st.Pending),
				zap.Int("stale", st.Stale),
				zap.Int("unmatched_fulfillments", early),
				zap.String("game_treasury", st.GameTreasury.Hex()),
				zap.String("oracle_treasury", st.OracleTreasury.Hex()),
			)
			if s.opts.Hooks.OnStatus != nil {
				s.opts.Hooks.OnStatus(st)
			}
		}
	}
}

// goLoop roda um laço de longa duração acompanhado pelo Stop
func (s *Service) goLoop(fn func()) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		fn()
	}()
}

// spawn roda um handler isolado: um pânico derruba só aquele jogo
func (s *Service) spawn(stage string, fn func()) {
	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		defer func() {
			if r := recover(); r != nil {
				s.fail("panic", fmt.Errorf("%s handler panic: %v", stage, r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		fn()
	}()
}

func (s *Service) fail(stage string, err error, fields ...zap.Field) {
	if s.opts.Hooks.OnError != nil {
		s.opts.Hooks.OnError(stage)
	}
	s.log.Error(stage+" failed", append(fields, zap.Error(err))...)
}

func (s *Service) hook(fn func()) {
	if fn != nil {
		fn()
	}
}

func (s *Service) hookResult(result string) {
	if s.opts.Hooks.OnSettled != nil {
		s.opts.Hooks.OnSettled(result)
	}
}
