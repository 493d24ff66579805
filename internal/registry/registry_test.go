package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

const (
	custodyA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	custodyB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func testRegistry() *Registry {
	return New(logger.NewNop(),
		ChainConfig{ChainID: 1, Name: "Ethereum", NativeSymbol: "ETH", CustodyAddress: custodyA, RPCURL: "http://eth", ExplorerTxURL: "https://etherscan.io/tx/",
			Tokens: []TokenConfig{{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6}}},
		ChainConfig{ChainID: 137, Name: "Polygon", NativeSymbol: "POL", CustodyAddress: custodyB, RPCURL: "http://polygon"},
		ChainConfig{ChainID: 56, Name: "BNB Smart Chain", NativeSymbol: "BNB", CustodyAddress: "", RPCURL: "http://bsc"},
		ChainConfig{ChainID: 10, Name: "Optimism", NativeSymbol: "ETH", CustodyAddress: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", RPCURL: "http://op"},
	)
}

func TestResolve(t *testing.T) {
	r := testRegistry()

	c, ok := r.Resolve(1)
	require.True(t, ok)
	require.Equal(t, common.HexToAddress(custodyA), c.CustodyAddress)
	require.Equal(t, uint8(18), c.NativeDecimals)

	_, ok = r.Resolve(56)
	require.False(t, ok, "chain without custody address must be unsupported")

	_, ok = r.Resolve(10)
	require.False(t, ok, "non-checksummed custody address must be rejected")

	_, ok = r.Resolve(999)
	require.False(t, ok)
}

func TestResolve_Idempotent(t *testing.T) {
	r := testRegistry()
	for _, id := range []int64{1, 137, 56, 999} {
		first, ok1 := r.Resolve(id)
		second, ok2 := r.Resolve(id)
		require.Equal(t, ok1, ok2)
		require.Equal(t, first, second)
	}
}

func TestLookup_Unsupported(t *testing.T) {
	_, err := testRegistry().Lookup(56)
	require.True(t, errors.Is(err, models.ErrUnsupportedChain))
}

func TestTokens(t *testing.T) {
	r := testRegistry()

	tokens := r.Tokens(1)
	require.Len(t, tokens, 2)
	require.True(t, tokens[0].IsNative())
	require.Equal(t, "ETH", tokens[0].Symbol)
	require.Equal(t, int64(1), tokens[1].ChainID)

	usdt, err := r.Token(1, "usdt")
	require.NoError(t, err)
	require.Equal(t, uint8(6), usdt.Decimals)
	require.False(t, usdt.IsNative())

	_, err = r.Token(1, "DOGE")
	require.ErrorIs(t, err, models.ErrTokenNotFound)

	require.Equal(t, []int64{1, 137}, r.ChainIDs())
}

func TestTokensWithoutDecimalsAreSkipped(t *testing.T) {
	r := New(logger.NewNop(), ChainConfig{
		ChainID: 1, Name: "Ethereum", NativeSymbol: "ETH", CustodyAddress: custodyA, RPCURL: "http://eth",
		Tokens: []TokenConfig{
			{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		},
	})

	_, err := r.Token(1, "USDT")
	require.ErrorIs(t, err, models.ErrTokenNotFound)

	usdc, err := r.Token(1, "USDC")
	require.NoError(t, err)
	require.Equal(t, uint8(6), usdc.Decimals)
}

func TestExplorerTxURL(t *testing.T) {
	c, _ := testRegistry().Resolve(1)
	require.Equal(t, "https://etherscan.io/tx/0xabc", c.ExplorerTxURL("0xabc"))
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	content := `chains:
  - chain_id: 137
    custody_address: "` + custodyB + `"
  - chain_id: 31337
    name: Anvil
    native_symbol: ETH
    custody_address: "` + custodyA + `"
    rpc_url: http://127.0.0.1:8545
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := Load(path, logger.NewNop())
	require.NoError(t, err)
	require.Equal(t, []int64{137, 31337}, r.ChainIDs())

	polygon, ok := r.Resolve(137)
	require.True(t, ok)
	require.Equal(t, "POL", polygon.NativeSymbol)
	require.Equal(t, "https://polygonscan.com/tx/", polygon.ExplorerTxURLTemplate)
	require.Len(t, r.Tokens(137), 3)

	anvil, ok := r.Resolve(31337)
	require.True(t, ok)
	require.Equal(t, uint8(18), anvil.NativeDecimals)
}

func TestLoad_NoFileMeansNoSupportedChains(t *testing.T) {
	r, err := Load("", logger.NewNop())
	require.NoError(t, err)
	require.Empty(t, r.ChainIDs())
}
