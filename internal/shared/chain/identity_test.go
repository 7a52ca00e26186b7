package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLoadIdentity(t *testing.T) {
	// chave 0 do anvil
	const key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	id, err := LoadIdentity(key)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), id.Address())

	_, err = LoadIdentity("")
	require.ErrorIs(t, err, ErrMissingKey)

	_, err = LoadIdentity("zz")
	require.Error(t, err)
}
