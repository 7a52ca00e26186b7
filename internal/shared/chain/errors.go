package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrConfirmationTimeout indica que o receipt não apareceu dentro do prazo configurado
var ErrConfirmationTimeout = errors.New("confirmation timeout")

// NetworkError encapsula falhas de transporte/RPC. A mensagem original do nó é preservada
// porque o submitter extrai o nonce esperado do texto.
type NetworkError struct {
	Chain string
	Op    string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Chain, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type CallErrorKind int

const (
	CallFailed   CallErrorKind = iota // falha genérica / decode
	CallNoCode                        // nenhum contrato no endereço
	CallReverted                      // o contrato reverteu
)

func (k CallErrorKind) String() string {
	switch k {
	case CallNoCode:
		return "no_code"
	case CallReverted:
		return "reverted"
	default:
		return "failed"
	}
}

// ContractCallError é devolvido por chamadas read-only
type ContractCallError struct {
	Contract common.Address
	Method   string
	Kind     CallErrorKind
	Reason   string // motivo do revert, quando disponível
	Err      error
}

func (e *ContractCallError) Error() string {
	msg := fmt.Sprintf("call %s on %s: %s", e.Method, e.Contract.Hex(), e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContractCallError) Unwrap() error { return e.Err }

// IsNoCode informa se err é um ContractCallError de endereço sem código
func IsNoCode(err error) bool {
	var cce *ContractCallError
	return errors.As(err, &cce) && cce.Kind == CallNoCode
}

// IsReverted informa se err é um ContractCallError de revert
func IsReverted(err error) bool {
	var cce *ContractCallError
	return errors.As(err, &cce) && cce.Kind == CallReverted
}
