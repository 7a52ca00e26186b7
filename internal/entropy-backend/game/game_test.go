package game

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeForEveryDraw(t *testing.T) {
	cases := []struct {
		game      GameType
		threshold uint64
	}{
		{Mines, 45},
		{Plinko, 40},
		{Roulette, 48},
		{Wheel, 35},
		{GameType(9), 50},
	}

	bet := big.NewInt(1_000_000)
	for _, tc := range cases {
		tc := tc

		t.Run(tc.game.String(), func(t *testing.T) {
			t.Parallel()

			for draw := uint64(0); draw < 100; draw++ {
				out := OutcomeForDraw(tc.game, draw, bet)
				require.Equal(t, draw < tc.threshold, out.Won, "draw %d", draw)
				if !out.Won {
					require.Zero(t, out.WinAmount.Sign(), "draw %d", draw)
				}
			}
		})
	}
}

func TestWinAmountIsFlooredExactly(t *testing.T) {
	cases := []struct {
		name string
		game GameType
		bet  int64
		want int64
	}{
		{name: "RouletteOneUnit", game: Roulette, bet: 1, want: 1},
		{name: "RouletteOddBet", game: Roulette, bet: 7, want: 13},
		{name: "MinesDoubles", game: Mines, bet: 5, want: 10},
		{name: "PlinkoFloors", game: Plinko, bet: 3, want: 6},
		{name: "WheelHalf", game: Wheel, bet: 3, want: 7},
		{name: "DefaultRow", game: GameType(200), bet: 9, want: 16},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := OutcomeForDraw(tc.game, 0, big.NewInt(tc.bet))
			require.True(t, out.Won)
			require.Equal(t, big.NewInt(tc.want), out.WinAmount)
		})
	}
}

func TestWinAmountOnLargeWeiBets(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	want, _ := new(big.Int).SetString("1900000000000000000", 10)

	out := OutcomeForDraw(Roulette, 10, oneEther)
	require.True(t, out.Won)
	require.Equal(t, want, out.WinAmount)
}

func TestComputeOutcomeUsesModulo100(t *testing.T) {
	rv, _ := new(big.Int).SetString("123456789012345678901234567810", 10)

	out := ComputeOutcome(Roulette, rv, big.NewInt(1))
	require.Equal(t, uint64(10), out.Draw)
	require.True(t, out.Won)
	require.Equal(t, big.NewInt(1), out.WinAmount)
}

func TestParseGameType(t *testing.T) {
	g, err := ParseGameType("roulette")
	require.NoError(t, err)
	require.Equal(t, Roulette, g)

	g, err = ParseGameType("3")
	require.NoError(t, err)
	require.Equal(t, Wheel, g)

	_, err = ParseGameType("poker")
	require.Error(t, err)
	_, err = ParseGameType("7")
	require.Error(t, err)
}
