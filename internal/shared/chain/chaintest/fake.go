// Package chaintest fornece um Connector em memória para testes do pipeline sem rede.
package chaintest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/radieske/entropy-casino-backend/internal/shared/chain"
)

var _ chain.Connector = (*Fake)(nil)

// Operações que podem ser forçadas a falhar com FailOn
const (
	OpBalance     = "balance"
	OpNonceLatest = "nonce_latest"
	OpNonceP      = "nonce_pending"
	OpCode        = "code"
	OpBlockNumber = "block_number"
	OpFilterLogs  = "filter_logs"
	OpReceipt     = "receipt"
)

type CallFunc func(args []interface{}) ([]interface{}, error)

type handler struct {
	method abi.Method
	fn     CallFunc
}

type SentTx struct {
	Hash common.Hash
	Tx   chain.TxRequest
}

type Fake struct {
	mu sync.Mutex

	name    string
	address common.Address
	chainID *big.Int

	balances     map[common.Address]*big.Int
	code         map[common.Address][]byte
	latestNonce  uint64
	pendingNonce uint64
	head         uint64
	logs         []types.Log
	handlers     map[[4]byte]handler
	failures     map[string]error

	attempts []chain.TxRequest
	sent     []SentTx
	receipts map[common.Hash]*chain.Receipt
	waits    int

	// SendHook decide o resultado de cada tentativa de envio (attempt começa em 1)
	SendHook func(attempt int, tx chain.TxRequest) error
	// ReceiptHook ajusta o receipt (status, logs) de uma transação aceita
	ReceiptHook func(tx chain.TxRequest, r *chain.Receipt)
	// WaitHook roda antes de cada WaitForReceipt (call começa em 1); um erro é devolvido ao chamador
	WaitHook func(ctx context.Context, call int, hash common.Hash) error
}

func New(name string, address common.Address) *Fake {
	return &Fake{
		name:     name,
		address:  address,
		chainID:  big.NewInt(1337),
		balances: make(map[common.Address]*big.Int),
		code:     make(map[common.Address][]byte),
		handlers: make(map[[4]byte]handler),
		failures: make(map[string]error),
		receipts: make(map[common.Hash]*chain.Receipt),
		head:     100,
	}
}

func (f *Fake) SetBalance(addr common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = new(big.Int).Set(wei)
}

func (f *Fake) SetNonces(latest, pending uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestNonce, f.pendingNonce = latest, pending
}

func (f *Fake) SetCode(addr common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[addr] = code
}

func (f *Fake) SetHead(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = n
}

// AddLogs publica logs já minerados; o bloco do log passa a ser o head se for maior
func (f *Fake) AddLogs(logs ...types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range logs {
		if l.BlockNumber > f.head {
			f.head = l.BlockNumber
		}
		f.logs = append(f.logs, l)
	}
}

// Handle registra a resposta de um método view do ABI
func (f *Fake) Handle(a abi.ABI, method string, fn CallFunc) {
	m, ok := a.Methods[method]
	if !ok {
		panic("chaintest: unknown method " + method)
	}
	var sel [4]byte
	copy(sel[:], m.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[sel] = handler{method: m, fn: fn}
}

// FailOn força a operação op a devolver err (nil limpa)
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *Fake) Attempts() []chain.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.TxRequest(nil), f.attempts...)
}

func (f *Fake) Sent() []SentTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentTx(nil), f.sent...)
}

// Waits conta as chamadas a WaitForReceipt
func (f *Fake) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

func (f *Fake) failure(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[op]
}

func (f *Fake) netErr(op string) error {
	if err := f.failure(op); err != nil {
		return &chain.NetworkError{Chain: f.name, Op: op, Err: err}
	}
	return nil
}

func (f *Fake) Name() string            { return f.name }
func (f *Fake) Address() common.Address { return f.address }
func (f *Fake) ChainID() *big.Int       { return new(big.Int).Set(f.chainID) }

func (f *Fake) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	if err := f.netErr(OpBalance); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *Fake) TransactionCount(_ context.Context, _ common.Address, tag chain.NonceTag) (uint64, error) {
	if tag == chain.TagPending {
		if err := f.netErr(OpNonceP); err != nil {
			return 0, err
		}
	} else if err := f.netErr(OpNonceLatest); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if tag == chain.TagPending {
		return f.pendingNonce, nil
	}
	return f.latestNonce, nil
}

func (f *Fake) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	if err := f.netErr(OpCode); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr], nil
}

func (f *Fake) CallContract(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	f.mu.Lock()
	h, ok := f.handlers[sel]
	f.mu.Unlock()
	if !ok {
		return nil, nil
	}

	args, err := h.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s: %w", h.method.Name, err)
	}
	out, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(out...)
}

func (f *Fake) SendTransaction(_ context.Context, tx chain.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, tx)
	attempt := len(f.attempts)
	hook := f.SendHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(attempt, tx); err != nil {
			return common.Hash{}, err
		}
	}

	f.mu.Lock()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(attempt))
	hash := crypto.Keccak256Hash([]byte(f.name), tx.To.Bytes(), tx.Data, buf[:])
	f.head++
	r := &chain.Receipt{
		TxHash:      hash,
		BlockNumber: f.head,
		GasUsed:     21000,
		Status:      types.ReceiptStatusSuccessful,
	}
	if tx.Nonce+1 > f.pendingNonce {
		f.pendingNonce = tx.Nonce + 1
	}
	if tx.Nonce+1 > f.latestNonce {
		f.latestNonce = tx.Nonce + 1
	}
	f.sent = append(f.sent, SentTx{Hash: hash, Tx: tx})
	rhook := f.ReceiptHook
	f.mu.Unlock()

	if rhook != nil {
		rhook(tx, r)
	}

	f.mu.Lock()
	f.receipts[hash] = r
	f.mu.Unlock()
	return hash, nil
}

func (f *Fake) WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	f.mu.Lock()
	f.waits++
	call := f.waits
	hook := f.WaitHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call, hash); err != nil {
			return nil, err
		}
	}
	if err := f.netErr(OpReceipt); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("%s tx %s: %w", f.name, hash.Hex(), chain.ErrConfirmationTimeout)
	}
	cp := *r
	return &cp, nil
}

func (f *Fake) BlockNumber(_ context.Context) (uint64, error) {
	if err := f.netErr(OpBlockNumber); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *Fake) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := f.netErr(OpFilterLogs); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.Log
	for _, l := range f.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if !matchAddress(q.Addresses, l.Address) || !matchTopics(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func matchAddress(want []common.Address, got common.Address) bool {
	if len(want) == 0 {
		return true
	}
	for _, a := range want {
		if a == got {
			return true
		}
	}
	return false
}

func matchTopics(want [][]common.Hash, got []common.Hash) bool {
	for i, alternatives := range want {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(got) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == got[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
