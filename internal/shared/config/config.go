package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	ctopics "github.com/radieske/entropy-casino-backend/pkg/contracts/topics"
)

// ChainConfig agrupa os parâmetros de uma chain (game chain ou oracle chain)
type ChainConfig struct {
	Name       string
	RPCURL     string
	PrivateKey string // hex, com ou sem 0x
	Contract   string // casino (game chain) ou entropy consumer (oracle chain)
}

// Config centraliza variáveis de ambiente e parâmetros de execução do serviço
// Inclui as duas chains, gas, retries, estratégias e conexões auxiliares
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string

	GameChain   ChainConfig
	OracleChain ChainConfig

	// MocaGameLogger na game chain; vazio desativa o log on-chain dos jogos
	GameLoggerContract string
	GameLogGasLimit    uint64

	// Fee usado quando a leitura de entropyFee() falha (em ether, ex: "0.001")
	EntropyFeeFallback string

	// Gas fixo: sem estimativa dinâmica para não criar uma segunda fonte de instabilidade de RPC
	GasPriceGwei       int64
	EntropyGasLimit    uint64
	SettlementGasLimit uint64

	NonceMaxRetries   int
	NonceRetryBackoff time.Duration

	RPCTimeout     time.Duration
	RPCRateLimit   float64 // chamadas/s por chain; 0 desativa
	ReceiptTimeout time.Duration

	LogPollInterval      time.Duration
	LogLookbackBlocks    uint64
	FulfillmentStrategy  string // event | poll | both
	FulfillmentPollDelay time.Duration
	FulfillmentPollLimit int // rodadas de polling por requisição no modo poll
	AllowTxHashFallback  bool

	SettlementFailurePolicy string // drop | retry
	SettlementMaxAttempts   int
	SettlementRetryBackoff  time.Duration

	StatusInterval time.Duration
	DrainTimeout   time.Duration // prazo dos handlers em andamento no shutdown

	// Dependências opcionais: string vazia desativa
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string

	TopicEntropyRequested  string
	TopicGameSettled       string
	TopicSettlementDLQ     string
	RedisSettlementChannel string

	MetricsPort string
}

// Load carrega variáveis de ambiente e define defaults
func Load() Config {
	return Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "entropy-backend"),

		GameChain: ChainConfig{
			Name:       "moca-testnet",
			RPCURL:     getEnv("GAME_CHAIN_RPC_URL", "https://testnet-rpc.mocachain.org/"),
			PrivateKey: getEnv("GAME_TREASURY_PRIVATE_KEY", ""),
			Contract:   getEnv("GAME_CASINO_CONTRACT", ""),
		},
		OracleChain: ChainConfig{
			Name:       "arbitrum-sepolia",
			RPCURL:     getEnv("ORACLE_CHAIN_RPC_URL", "https://sepolia-rollup.arbitrum.io/rpc"),
			PrivateKey: getEnv("ORACLE_TREASURY_PRIVATE_KEY", ""),
			Contract:   getEnv("ORACLE_ENTROPY_CONSUMER_CONTRACT", ""),
		},

		GameLoggerContract: getEnv("GAME_LOGGER_CONTRACT", ""),
		GameLogGasLimit:    uint64(getInt64("GAME_LOG_GAS_LIMIT", 5000000)),

		EntropyFeeFallback: getEnv("ENTROPY_FEE_FALLBACK", "0.001"),

		GasPriceGwei:       getInt64("GAS_PRICE_GWEI", 1),
		EntropyGasLimit:    uint64(getInt64("ENTROPY_GAS_LIMIT", 500000)),
		SettlementGasLimit: uint64(getInt64("SETTLEMENT_GAS_LIMIT", 500000)),

		NonceMaxRetries:   int(getInt64("NONCE_MAX_RETRIES", 3)),
		NonceRetryBackoff: getDuration("NONCE_RETRY_BACKOFF", time.Second),

		RPCTimeout:     getDuration("RPC_TIMEOUT", 15*time.Second),
		RPCRateLimit:   getFloat("RPC_RATE_LIMIT", 10),
		ReceiptTimeout: getDuration("RECEIPT_TIMEOUT", 2*time.Minute),

		LogPollInterval:      getDuration("LOG_POLL_INTERVAL", 5*time.Second),
		LogLookbackBlocks:    uint64(getInt64("LOG_LOOKBACK_BLOCKS", 0)),
		FulfillmentStrategy:  strings.ToLower(getEnv("FULFILLMENT_STRATEGY", "event")),
		FulfillmentPollDelay: getDuration("FULFILLMENT_POLL_DELAY", 3*time.Second),
		FulfillmentPollLimit: int(getInt64("FULFILLMENT_POLL_BUDGET", 100)),
		AllowTxHashFallback:  getBool("ALLOW_TXHASH_FALLBACK", false),

		SettlementFailurePolicy: strings.ToLower(getEnv("SETTLEMENT_FAILURE_POLICY", "drop")),
		SettlementMaxAttempts:   int(getInt64("SETTLEMENT_MAX_ATTEMPTS", 3)),
		SettlementRetryBackoff:  getDuration("SETTLEMENT_RETRY_BACKOFF", 2*time.Second),

		StatusInterval: getDuration("STATUS_INTERVAL", 30*time.Second),
		DrainTimeout:   getDuration("SHUTDOWN_DRAIN_TIMEOUT", 30*time.Second),

		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),

		TopicEntropyRequested:  getEnv("KAFKA_TOPIC_ENTROPY_REQUESTED", ctopics.EntropyRequested),
		TopicGameSettled:       getEnv("KAFKA_TOPIC_GAME_SETTLED", ctopics.GameSettled),
		TopicSettlementDLQ:     getEnv("KAFKA_TOPIC_SETTLEMENT_DLQ", ctopics.SettlementDLQ),
		RedisSettlementChannel: getEnv("REDIS_SETTLEMENT_CHANNEL", ctopics.SettlementBroadcast),

		MetricsPort: getEnv("METRICS_PORT", "9100"),
	}
}

// getEnv retorna o valor da variável de ambiente ou o default
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// getDuration aceita "3s", "500ms" etc.
func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
