// Package game contém a tabela de pagamento dos jogos e o cálculo determinístico do resultado.
package game

import (
	"fmt"
	"math/big"
	"strings"
)

type GameType uint8

const (
	Mines GameType = iota
	Plinko
	Roulette
	Wheel
)

var names = map[GameType]string{
	Mines:    "MINES",
	Plinko:   "PLINKO",
	Roulette: "ROULETTE",
	Wheel:    "WHEEL",
}

func (g GameType) String() string {
	if n, ok := names[g]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(g))
}

func (g GameType) Known() bool {
	_, ok := names[g]
	return ok
}

// ParseGameType aceita o nome (case-insensitive) ou o código numérico do contrato
func ParseGameType(s string) (GameType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for g, n := range names {
		if n == s {
			return g, nil
		}
	}
	var code uint8
	if _, err := fmt.Sscanf(s, "%d", &code); err == nil && GameType(code).Known() {
		return GameType(code), nil
	}
	return 0, fmt.Errorf("unknown game type %q", s)
}

// Rule é uma linha da tabela: vence quando draw < Threshold; multiplicador em décimos
type Rule struct {
	Threshold     uint64
	MultiplierX10 int64
}

var (
	rules = map[GameType]Rule{
		Mines:    {Threshold: 45, MultiplierX10: 20},
		Plinko:   {Threshold: 40, MultiplierX10: 22},
		Roulette: {Threshold: 48, MultiplierX10: 19},
		Wheel:    {Threshold: 35, MultiplierX10: 25},
	}
	defaultRule = Rule{Threshold: 50, MultiplierX10: 18}
)

func RuleFor(g GameType) Rule {
	if r, ok := rules[g]; ok {
		return r
	}
	return defaultRule
}

// Outcome é derivado, nunca persistido. WinAmount é zero quando Won é false.
type Outcome struct {
	Won       bool
	WinAmount *big.Int
	Draw      uint64
}

var hundred = big.NewInt(100)

// Draw reduz o valor aleatório ao intervalo [0,99]
func Draw(randomValue *big.Int) uint64 {
	if randomValue == nil {
		return 0
	}
	return new(big.Int).Mod(randomValue, hundred).Uint64()
}

func ComputeOutcome(g GameType, randomValue, bet *big.Int) Outcome {
	return OutcomeForDraw(g, Draw(randomValue), bet)
}

// OutcomeForDraw aplica a tabela com aritmética inteira: floor(bet * mult) = bet*multX10/10
func OutcomeForDraw(g GameType, draw uint64, bet *big.Int) Outcome {
	r := RuleFor(g)
	out := Outcome{Draw: draw, WinAmount: new(big.Int)}
	if draw >= r.Threshold || bet == nil || bet.Sign() <= 0 {
		return out
	}
	out.Won = true
	out.WinAmount.Mul(bet, big.NewInt(r.MultiplierX10))
	out.WinAmount.Quo(out.WinAmount, big.NewInt(10))
	return out
}
