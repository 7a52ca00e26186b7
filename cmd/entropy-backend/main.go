package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/fulfillment"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/gamelog"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/pending"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/producer"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/requester"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/service"
	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/settlement"
	"github.com/radieske/entropy-casino-backend/internal/shared/cache"
	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
	"github.com/radieske/entropy-casino-backend/internal/shared/config"
	"github.com/radieske/entropy-casino-backend/internal/shared/db"
	"github.com/radieske/entropy-casino-backend/internal/shared/logger"
	"github.com/radieske/entropy-casino-backend/internal/shared/metrics"
	"github.com/radieske/entropy-casino-backend/internal/shared/txsubmit"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// SIGINT/SIGTERM cancelam o contexto e derrubam os watchers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	casino := mustAddress(log, "GAME_CASINO_CONTRACT", cfg.GameChain.Contract)
	consumer := mustAddress(log, "ORACLE_ENTROPY_CONSUMER_CONTRACT", cfg.OracleChain.Contract)

	feeFallback, err := chain.ParseEther(cfg.EntropyFeeFallback)
	if err != nil {
		log.Fatal("entropy fee fallback", zap.Error(err))
	}
	policy, err := settlement.ParsePolicy(cfg.SettlementFailurePolicy)
	if err != nil {
		log.Fatal("settlement policy", zap.Error(err))
	}

	// Conexões com as duas chains, cada uma com sua identidade de tesouraria
	gameConn := dialChain(ctx, log, cfg, cfg.GameChain)
	defer gameConn.Close()
	oracleConn := dialChain(ctx, log, cfg, cfg.OracleChain)
	defer oracleConn.Close()

	pipeline := metrics.NewPipeline(prometheus.DefaultRegisterer)

	// Journal Postgres opcional: sem DSN a tabela de pendentes vive só em memória
	var journal pending.Journal
	if cfg.PostgresDSN != "" {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()

		pj := pending.NewPostgresJournal(pg)
		if err := pj.EnsureSchema(ctx); err != nil {
			log.Fatal("postgres schema", zap.Error(err))
		}
		journal = pj
	}
	table := pending.NewTable(journal, logger.Component(log, "pending"))
	if n, err := table.Restore(ctx); err != nil {
		log.Error("restore pending requests", zap.Error(err))
	} else if n > 0 {
		log.Info("pending requests restored", zap.Int("count", n))
	}

	// Redis opcional: guard de settlement entre instâncias e broadcast dos resultados
	var (
		guard       settlement.Guard
		broadcaster producer.Broadcaster
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		guard = settlement.NewRedisGuard(rdb, 24*time.Hour)
		broadcaster = producer.NewRedisBroadcaster(rdb)
	}

	pub := producer.New(producer.Options{
		Brokers:          cfg.KafkaBrokers,
		TopicRequested:   cfg.TopicEntropyRequested,
		TopicSettled:     cfg.TopicGameSettled,
		TopicDLQ:         cfg.TopicSettlementDLQ,
		Broadcaster:      broadcaster,
		BroadcastChannel: cfg.RedisSettlementChannel,
	}, logger.Component(log, "producer"))
	defer pub.Close()

	submitOpts := txsubmit.Options{
		GasPrice:   chain.Gwei(cfg.GasPriceGwei),
		MaxRetries: cfg.NonceMaxRetries,
		Backoff:    cfg.NonceRetryBackoff,
	}
	oracleSub := txsubmit.New(oracleConn, logger.Component(log, "oracle-submitter"), submitOpts)
	gameSub := txsubmit.New(gameConn, logger.Component(log, "game-submitter"), submitOpts)

	req := requester.New(oracleConn, consumer, oracleSub, table, logger.Component(log, "requester"), requester.Options{
		GasLimit:    cfg.EntropyGasLimit,
		FeeFallback: feeFallback,
	})

	if cfg.AllowTxHashFallback {
		log.Warn("tx hash fallback enabled: unfulfilled requests settle with non-oracle randomness")
	}
	poller := fulfillment.NewPoller(oracleConn, consumer, logger.Component(log, "poller"), fulfillment.PollerOptions{
		Delay:               cfg.FulfillmentPollDelay,
		AllowTxHashFallback: cfg.AllowTxHashFallback,
	})

	// Log on-chain dos jogos liquidados, pelo mesmo submitter da game chain
	var gameLog settlement.GameLogger
	if cfg.GameLoggerContract != "" {
		addr := mustAddress(log, "GAME_LOGGER_CONTRACT", cfg.GameLoggerContract)
		gameLog = gamelog.New(gameConn, addr, gameSub, logger.Component(log, "gamelog"), gamelog.Options{
			GasLimit: cfg.GameLogGasLimit,
		})
	}

	disp := settlement.New(settlement.Deps{
		Conn:      gameConn,
		Casino:    casino,
		Submitter: gameSub,
		Table:     table,
		Guard:     guard,
		Publisher: pub,
		GameLog:   gameLog,
		Log:       logger.Component(log, "settlement"),
	}, settlement.Options{
		GasLimit:    cfg.SettlementGasLimit,
		Policy:      policy,
		MaxAttempts: cfg.SettlementMaxAttempts,
		Backoff:     cfg.SettlementRetryBackoff,
	})

	svc, err := service.New(service.Deps{
		GameChain:   gameConn,
		OracleChain: oracleConn,
		Casino:      casino,
		Consumer:    consumer,
		Table:       table,
		Requester:   req,
		Poller:      poller,
		Dispatcher:  disp,
		Publisher:   pub,
		Log:         logger.Component(log, "service"),
	}, service.Options{
		Strategy:        cfg.FulfillmentStrategy,
		LogPollInterval: cfg.LogPollInterval,
		LogLookback:     cfg.LogLookbackBlocks,
		StatusInterval:  cfg.StatusInterval,
		PollAttempts:    cfg.FulfillmentPollLimit,
		DrainTimeout:    cfg.DrainTimeout,
		Hooks:           pipelineHooks(pipeline),
	})
	if err != nil {
		log.Fatal("service init", zap.Error(err))
	}

	// Servidor de métricas/health: saudável quando as duas chains respondem
	srv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if _, err := gameConn.BlockNumber(ctx); err != nil {
			return err
		}
		_, err := oracleConn.BlockNumber(ctx)
		return err
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	if err := svc.Start(ctx); err != nil {
		log.Fatal("service start", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	svc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func dialChain(ctx context.Context, log *zap.Logger, cfg config.Config, cc config.ChainConfig) *chain.EthConnector {
	id, err := chain.LoadIdentity(cc.PrivateKey)
	if err != nil {
		log.Fatal("treasury identity", zap.String("chain", cc.Name), zap.Error(err))
	}

	conn, err := chain.Dial(ctx, chain.Options{
		Name:           cc.Name,
		RPCURL:         cc.RPCURL,
		Identity:       id,
		RPCTimeout:     cfg.RPCTimeout,
		ReceiptTimeout: cfg.ReceiptTimeout,
		ReceiptPoll:    time.Second,
		RateLimit:      cfg.RPCRateLimit,
	})
	if err != nil {
		log.Fatal("chain connect", zap.String("chain", cc.Name), zap.Error(err))
	}

	log.Info("chain connected",
		zap.String("chain", cc.Name),
		zap.String("chain_id", conn.ChainID().String()),
		zap.String("treasury", conn.Address().Hex()),
	)
	return conn
}

func mustAddress(log *zap.Logger, key, v string) common.Address {
	if !common.IsHexAddress(v) {
		log.Fatal("invalid contract address", zap.String("key", key), zap.String("value", v))
	}
	return common.HexToAddress(v)
}

func pipelineHooks(p *metrics.Pipeline) service.Hooks {
	return service.Hooks{
		OnGame:      p.GamesSeen.Inc,
		OnRequested: p.Requests.Inc,
		OnSettled:   func(result string) { p.Settlements.WithLabelValues(result).Inc() },
		OnError:     func(stage string) { p.Errors.WithLabelValues(stage).Inc() },
		OnStatus:    func(st service.Status) { p.Pending.Set(float64(st.Pending)) },
	}
}
