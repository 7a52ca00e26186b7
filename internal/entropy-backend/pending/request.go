// Package pending mantém as requisições de entropia aguardando settlement.
package pending

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/game"
)

// State é o ciclo de vida de uma requisição: Requested -> Fulfilled -> Settled | Abandoned
type State uint8

const (
	StateRequested State = iota
	StateFulfilled
	StateSettled
	StateAbandoned
)

var stateNames = [...]string{"REQUESTED", "FULFILLED", "SETTLED", "ABANDONED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

func ParseState(s string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, s) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

func (s State) Terminal() bool { return s == StateSettled || s == StateAbandoned }

// CanTransition lista as únicas transições válidas.
// Requested -> Abandoned cobre falhas antes da entropia chegar.
func CanTransition(from, to State) bool {
	switch from {
	case StateRequested:
		return to == StateFulfilled || to == StateAbandoned
	case StateFulfilled:
		return to == StateSettled || to == StateAbandoned
	default:
		return false
	}
}

type Request struct {
	RequestID     [32]byte
	OriginTxHash  common.Hash // tx do jogo na game chain
	RequestTxHash common.Hash // tx de request() na oracle chain
	BlockNumber   uint64
	User          common.Address
	GameType      game.GameType
	BetAmount     *big.Int
	FeePaid       *big.Int
	GameConfig    string // opaco, só auditoria
	Seed          [32]byte
	DerivedID     bool // id derivado de seed+bloco, não lido do evento
	CreatedAt     time.Time
	State         State
}

func (r *Request) ID() string { return IDString(r.RequestID) }

func IDString(id [32]byte) string { return hexutil.Encode(id[:]) }

func (r *Request) clone() Request {
	cp := *r
	if r.BetAmount != nil {
		cp.BetAmount = new(big.Int).Set(r.BetAmount)
	}
	if r.FeePaid != nil {
		cp.FeePaid = new(big.Int).Set(r.FeePaid)
	}
	return cp
}
