package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMissingKey = errors.New("treasury private key not configured")

// Identity é a identidade de tesouraria de uma chain: carregada uma vez, nunca alterada
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// LoadIdentity aceita a chave em hex, com ou sem prefixo 0x
func LoadIdentity(hexKey string) (*Identity, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrMissingKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse treasury key: %w", err)
	}
	return NewIdentity(key), nil
}

func NewIdentity(key *ecdsa.PrivateKey) *Identity {
	return &Identity{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (i *Identity) Address() common.Address { return i.address }

func (i *Identity) PrivateKey() *ecdsa.PrivateKey { return i.key }
