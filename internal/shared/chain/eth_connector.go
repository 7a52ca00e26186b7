package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

var _ Connector = (*EthConnector)(nil)

type Options struct {
	Name           string
	RPCURL         string
	Identity       *Identity
	RPCTimeout     time.Duration // prazo de cada chamada individual
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration
	RateLimit      float64 // chamadas/s; 0 desativa
}

// EthConnector implementa Connector sobre go-ethereum/ethclient
type EthConnector struct {
	name     string
	client   *ethclient.Client
	identity *Identity
	chainID  *big.Int
	signer   types.Signer
	limiter  *rate.Limiter

	rpcTimeout     time.Duration
	receiptTimeout time.Duration
	receiptPoll    time.Duration
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     30 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

// Dial conecta no RPC e resolve o chain id uma única vez
func Dial(ctx context.Context, opts Options) (*EthConnector, error) {
	if opts.RPCURL == "" {
		return nil, fmt.Errorf("%s: rpc url is required", opts.Name)
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, ErrMissingKey)
	}

	rpcClient, err := rpc.DialOptions(ctx, opts.RPCURL, rpc.WithHTTPClient(newHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("%s: dial rpc: %w", opts.Name, err)
	}

	c := &EthConnector{
		name:           opts.Name,
		client:         ethclient.NewClient(rpcClient),
		identity:       opts.Identity,
		rpcTimeout:     opts.RPCTimeout,
		receiptTimeout: opts.ReceiptTimeout,
		receiptPoll:    opts.ReceiptPoll,
	}
	if c.rpcTimeout <= 0 {
		c.rpcTimeout = 15 * time.Second
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = 2 * time.Minute
	}
	if c.receiptPoll <= 0 {
		c.receiptPoll = time.Second
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(opts.RateLimit)+1)
	}

	err = c.do(ctx, "eth_chainId", func(ctx context.Context) error {
		id, err := c.client.ChainID(ctx)
		c.chainID = id
		return err
	})
	if err != nil {
		c.client.Close()
		return nil, err
	}
	c.signer = types.LatestSignerForChainID(c.chainID)
	return c, nil
}

func (c *EthConnector) Close() { c.client.Close() }

func (c *EthConnector) Name() string            { return c.name }
func (c *EthConnector) Address() common.Address { return c.identity.Address() }
func (c *EthConnector) ChainID() *big.Int       { return new(big.Int).Set(c.chainID) }

// do executa uma chamada de RPC sob rate limit e com prazo próprio; o cancel
// roda em todos os caminhos de saída.
func (c *EthConnector) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Chain: c.name, Op: op, Err: err}
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		return &NetworkError{Chain: c.name, Op: op, Err: err}
	}
	return nil
}

func (c *EthConnector) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.do(ctx, "eth_getBalance", func(ctx context.Context) (err error) {
		bal, err = c.client.BalanceAt(ctx, addr, nil)
		return err
	})
	return bal, err
}

func (c *EthConnector) TransactionCount(ctx context.Context, addr common.Address, tag NonceTag) (uint64, error) {
	var n uint64
	err := c.do(ctx, "eth_getTransactionCount:"+string(tag), func(ctx context.Context) (err error) {
		if tag == TagPending {
			n, err = c.client.PendingNonceAt(ctx, addr)
		} else {
			n, err = c.client.NonceAt(ctx, addr, nil)
		}
		return err
	})
	return n, err
}

func (c *EthConnector) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := c.do(ctx, "eth_getCode", func(ctx context.Context) (err error) {
		code, err = c.client.CodeAt(ctx, addr, nil)
		return err
	})
	return code, err
}

func (c *EthConnector) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context) (err error) {
		out, err = c.client.CallContract(ctx, ethereum.CallMsg{From: c.Address(), To: &to, Data: data}, nil)
		return err
	})
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &ContractCallError{Contract: to, Kind: CallReverted, Reason: reason, Err: err}
		}
		return nil, err
	}
	return out, nil
}

// revertReason reconhece reverts pelo payload de erro do RPC (rpc.DataError) ou pela mensagem
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if hexData, ok := de.ErrorData().(string); ok {
			if raw, derr := hexutil.Decode(hexData); derr == nil {
				if reason, uerr := abi.UnpackRevert(raw); uerr == nil {
					return reason, true
				}
				return "", true
			}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return "", true
	}
	return "", false
}

func (c *EthConnector) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &req.To,
		Value:    value,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})

	signed, err := types.SignTx(tx, c.signer, c.identity.PrivateKey())
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	err = c.do(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.client.SendTransaction(ctx, signed)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// WaitForReceipt faz polling do receipt até ser minerado ou o ReceiptTimeout expirar
func (c *EthConnector) WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	tick := time.NewTicker(c.receiptPoll)
	defer tick.Stop()

	for {
		var r *types.Receipt
		err := c.do(waitCtx, "eth_getTransactionReceipt", func(ctx context.Context) (err error) {
			r, err = c.client.TransactionReceipt(ctx, hash)
			return err
		})
		switch {
		case err == nil:
			return &Receipt{
				TxHash:      r.TxHash,
				BlockNumber: r.BlockNumber.Uint64(),
				GasUsed:     r.GasUsed,
				Status:      r.Status,
				Logs:        r.Logs,
			}, nil
		case errors.Is(err, ethereum.NotFound):
			// ainda não minerada
		case waitCtx.Err() != nil:
			// tratado abaixo
		default:
			return nil, err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%s tx %s: %w", c.name, hash.Hex(), ErrConfirmationTimeout)
		case <-tick.C:
		}
	}
}

func (c *EthConnector) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context) (err error) {
		n, err = c.client.BlockNumber(ctx)
		return err
	})
	return n, err
}

func (c *EthConnector) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context) (err error) {
		logs, err = c.client.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}
