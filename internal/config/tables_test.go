package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/calldata"
)

func TestLoadEmbeddedTables(t *testing.T) {
	assert.ElementsMatch(t, []string{"base", "bsc"}, Chains())

	bsc, err := LoadTables("BSC", "")
	require.NoError(t, err)
	assert.Equal(t, "bsc", bsc.Chain)
	assert.Equal(t, uint64(56), bsc.ChainID)
	assert.Equal(t, "BNB", bsc.NativeSymbol)
	assert.Equal(t, common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), bsc.WrappedNative)
	assert.Equal(t, "USDT", bsc.Tokens[common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")].Symbol)
	assert.Equal(t, 15, bsc.Watch.Len())

	v2 := common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	router, layout, ok := bsc.Routers.Lookup(v2, common.FromHex("0x38ed1739"))
	require.True(t, ok)
	assert.Equal(t, calldata.RouterV2, router.Type)
	assert.Equal(t, "swapExactTokensForTokens", layout.Method)
	require.Len(t, layout.Fields, 5)
	assert.Equal(t, calldata.Field{Name: "path", Type: calldata.TypeAddressArray, Offset: 64}, layout.Fields[2])

	proxy := common.HexToAddress("0x75fF870A864B59f03ff3E67a65eF44Dea64f0cAf")
	_, layout, ok = bsc.Routers.Lookup(proxy, common.FromHex("0x04e45aaf"))
	require.True(t, ok)
	assert.Equal(t, "exactInputSingle", layout.Method)

	base, err := LoadTables("base", "")
	require.NoError(t, err)
	assert.Equal(t, "ETH", base.NativeSymbol)
	assert.Equal(t, uint8(6), base.Tokens[common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")].Decimals)
	assert.Equal(t, 0, base.Watch.Len())
}

func TestLoadTablesUnknownChain(t *testing.T) {
	_, err := LoadTables("solana", "")
	assert.ErrorContains(t, err, "unsupported chain")
}

func TestLoadTablesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tokens:
  - { address: "0x55d398326f99059fF775485246999027B3197955", symbol: BSC-USD, decimals: 18 }
  - { address: "0x1234567890123456789012345678901234567890", symbol: NEW, decimals: 9 }
watch:
  - { address: "0xbf2499e4cda11eb33eea341ae425d85b6e93f028", name: whale }
`), 0o644))

	tables, err := LoadTables("bsc", path)
	require.NoError(t, err)
	assert.Equal(t, "BSC-USD", tables.Tokens[common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")].Symbol)
	assert.Equal(t, uint8(9), tables.Tokens[common.HexToAddress("0x1234567890123456789012345678901234567890")].Decimals)
	assert.Equal(t, 15, tables.Watch.Len())
	assert.Equal(t, "whale", tables.Watch.Name(common.HexToAddress("0xbf2499e4cda11eb33eea341ae425d85b6e93f028")))
	assert.Equal(t, uint64(56), tables.ChainID)
}

func TestLoadTablesRejectsBadRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routers:
  - address: "0x3333333333333333333333333333333333333333"
    name: Broken
    type: DEX
    methods:
      "0x12345678": { name: broken, fields: [ { name: x, type: int8, offset: 0 } ] }
`), 0o644))

	_, err := LoadTables("bsc", path)
	assert.ErrorContains(t, err, "unknown type")
}

func TestTablesWatchSet(t *testing.T) {
	tables, err := LoadTables("base", "")
	require.NoError(t, err)

	watch, err := tables.WatchSet(
		[]string{"0x1111111111111111111111111111111111111111=alice", "0x2222222222222222222222222222222222222222"},
		map[string]string{"0x2222222222222222222222222222222222222222": "bob"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, watch.Len())
	assert.Equal(t, "alice", watch.Name(common.HexToAddress("0x1111111111111111111111111111111111111111")))
	assert.Equal(t, "bob", watch.Name(common.HexToAddress("0x2222222222222222222222222222222222222222")))

	_, err = tables.WatchSet([]string{"not-an-address"}, nil)
	assert.Error(t, err)
}

func TestParseHashesAndSelectors(t *testing.T) {
	topics, err := ParseHashes([]string{"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", " "})
	require.NoError(t, err)
	require.Len(t, topics, 1)

	_, err = ParseHashes([]string{"0xddf252ad"})
	assert.Error(t, err)

	selector, err := ParseSelector("38ED1739")
	require.NoError(t, err)
	assert.Equal(t, "0x38ed1739", selector)

	_, err = ParseSelector("0x38ed17")
	assert.Error(t, err)
}
