package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract associa um ABI e um endereço a um Connector
type Contract struct {
	Address common.Address
	ABI     abi.ABI
	conn    Connector
}

func NewContract(conn Connector, addr common.Address, a abi.ABI) *Contract {
	return &Contract{Address: addr, ABI: a, conn: conn}
}

func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Call executa uma chamada read-only e devolve o resultado decodificado
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := c.conn.CallContract(ctx, c.Address, data)
	if err != nil {
		var cce *ContractCallError
		if errors.As(err, &cce) {
			cce.Contract, cce.Method = c.Address, method
			return nil, cce
		}
		return nil, err
	}

	m := c.ABI.Methods[method]
	if len(out) == 0 && len(m.Outputs) > 0 {
		// resposta vazia: ou não há contrato no endereço ou a função não existe
		if code, cerr := c.conn.CodeAt(ctx, c.Address); cerr == nil && len(code) == 0 {
			return nil, &ContractCallError{Contract: c.Address, Method: method, Kind: CallNoCode}
		}
		return nil, &ContractCallError{Contract: c.Address, Method: method, Kind: CallFailed, Err: errors.New("empty response")}
	}

	values, err := c.ABI.Unpack(method, out)
	if err != nil {
		return nil, &ContractCallError{Contract: c.Address, Method: method, Kind: CallFailed, Err: err}
	}
	return values, nil
}

// EnsureDeployed falha com CallNoCode quando não existe contrato no endereço
func (c *Contract) EnsureDeployed(ctx context.Context) error {
	code, err := c.conn.CodeAt(ctx, c.Address)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return &ContractCallError{Contract: c.Address, Method: "<code>", Kind: CallNoCode}
	}
	return nil
}
