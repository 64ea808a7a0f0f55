package config

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"

	"swapScope/internal/calldata"
	"swapScope/internal/model"
	"swapScope/internal/token"
)

//go:embed tables/*.yaml
var embeddedTables embed.FS

// Tables is the static per-chain data injected at startup.
type Tables struct {
	Chain         string
	ChainID       uint64
	NativeSymbol  string
	WrappedNative common.Address
	Tokens        map[common.Address]token.StaticEntry
	Routers       *calldata.RouterTable
	Watch         *model.WatchSet
}

type rawTables struct {
	ChainID       uint64      `mapstructure:"chain_id"`
	NativeSymbol  string      `mapstructure:"native_symbol"`
	WrappedNative string      `mapstructure:"wrapped_native"`
	Tokens        []rawToken  `mapstructure:"tokens"`
	Routers       []rawRouter `mapstructure:"routers"`
	Watch         []rawWatch  `mapstructure:"watch"`
}

type rawToken struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

type rawRouter struct {
	Address        string                     `mapstructure:"address"`
	Name           string                     `mapstructure:"name"`
	Type           string                     `mapstructure:"type"`
	Implementation string                     `mapstructure:"implementation"`
	Methods        map[string]calldata.Layout `mapstructure:"methods"`
}

type rawWatch struct {
	Address string `mapstructure:"address"`
	Name    string `mapstructure:"name"`
}

// Chains lists the chains with embedded default tables.
func Chains() []string {
	entries, err := embeddedTables.ReadDir("tables")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	return out
}

// LoadTables reads the embedded defaults for chain and merges the optional
// override file on top. Override entries win over defaults with the same address.
func LoadTables(chain, file string) (Tables, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))
	data, err := embeddedTables.ReadFile("tables/" + chain + ".yaml")
	if err != nil {
		return Tables{}, fmt.Errorf("unsupported chain %q (known: %s)", chain, strings.Join(Chains(), ", "))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Tables{}, fmt.Errorf("read %s tables: %w", chain, err)
	}
	var raw rawTables
	if err := v.Unmarshal(&raw); err != nil {
		return Tables{}, fmt.Errorf("decode %s tables: %w", chain, err)
	}

	if file != "" {
		override := viper.New()
		override.SetConfigFile(file)
		if err := override.ReadInConfig(); err != nil {
			return Tables{}, fmt.Errorf("read tables file: %w", err)
		}
		var extra rawTables
		if err := override.Unmarshal(&extra); err != nil {
			return Tables{}, fmt.Errorf("decode tables file: %w", err)
		}
		raw = raw.merge(extra)
	}

	tables, err := raw.build()
	if err != nil {
		return Tables{}, fmt.Errorf("%s tables: %w", chain, err)
	}
	tables.Chain = chain
	return tables, nil
}

func (r rawTables) merge(over rawTables) rawTables {
	if over.ChainID != 0 {
		r.ChainID = over.ChainID
	}
	if over.NativeSymbol != "" {
		r.NativeSymbol = over.NativeSymbol
	}
	if over.WrappedNative != "" {
		r.WrappedNative = over.WrappedNative
	}
	r.Tokens = append(r.Tokens, over.Tokens...)
	r.Routers = append(r.Routers, over.Routers...)
	r.Watch = append(r.Watch, over.Watch...)
	return r
}

func (r rawTables) build() (Tables, error) {
	if r.NativeSymbol == "" {
		return Tables{}, fmt.Errorf("native_symbol is required")
	}
	wrapped, err := ParseAddress(r.WrappedNative)
	if err != nil {
		return Tables{}, fmt.Errorf("wrapped_native: %w", err)
	}

	tables := Tables{
		ChainID:       r.ChainID,
		NativeSymbol:  r.NativeSymbol,
		WrappedNative: wrapped,
		Tokens:        make(map[common.Address]token.StaticEntry, len(r.Tokens)),
		Watch:         model.NewWatchSet(),
	}

	for _, entry := range r.Tokens {
		address, err := ParseAddress(entry.Address)
		if err != nil {
			return Tables{}, fmt.Errorf("token %s: %w", entry.Symbol, err)
		}
		tables.Tokens[address] = token.StaticEntry{Symbol: entry.Symbol, Decimals: entry.Decimals}
	}
	if _, ok := tables.Tokens[wrapped]; !ok {
		tables.Tokens[wrapped] = token.StaticEntry{Symbol: r.NativeSymbol, Decimals: model.DefaultDecimals}
	}

	routers := make([]calldata.Router, 0, len(r.Routers))
	for _, entry := range r.Routers {
		router, err := entry.build()
		if err != nil {
			return Tables{}, fmt.Errorf("router %s: %w", entry.Name, err)
		}
		routers = append(routers, router)
	}
	tables.Routers = calldata.NewRouterTable(routers)
	for _, router := range routers {
		if router.Type != calldata.RouterV3Proxy {
			continue
		}
		if _, ok := tables.Routers.Router(router.Implementation); !ok {
			return Tables{}, fmt.Errorf("router %s: implementation %s is not a known router", router.Name, router.Implementation.Hex())
		}
	}

	for _, entry := range r.Watch {
		if _, err := ParseAddress(entry.Address); err != nil {
			return Tables{}, fmt.Errorf("watch entry: %w", err)
		}
		tables.Watch.Add(entry.Address, entry.Name)
	}
	return tables, nil
}

func (r rawRouter) build() (calldata.Router, error) {
	address, err := ParseAddress(r.Address)
	if err != nil {
		return calldata.Router{}, err
	}
	router := calldata.Router{
		Address: address,
		Name:    r.Name,
		Type:    calldata.RouterType(strings.ToUpper(r.Type)),
		Methods: make(map[string]calldata.Layout, len(r.Methods)),
	}

	switch router.Type {
	case calldata.RouterV2, calldata.RouterV3:
	case calldata.RouterV3Proxy:
		if router.Implementation, err = ParseAddress(r.Implementation); err != nil {
			return calldata.Router{}, fmt.Errorf("implementation: %w", err)
		}
	default:
		return calldata.Router{}, fmt.Errorf("unknown router type %q", r.Type)
	}

	for selector, layout := range r.Methods {
		if _, err := ParseSelector(selector); err != nil {
			return calldata.Router{}, err
		}
		for _, field := range layout.Fields {
			if !knownFieldType(field.Type) {
				return calldata.Router{}, fmt.Errorf("method %s field %s: unknown type %q", layout.Method, field.Name, field.Type)
			}
			if field.Offset < 0 || field.Offset%32 != 0 {
				return calldata.Router{}, fmt.Errorf("method %s field %s: offset %d is not word aligned", layout.Method, field.Name, field.Offset)
			}
		}
		router.Methods[selector] = layout
	}
	return router, nil
}

func knownFieldType(t calldata.FieldType) bool {
	switch t {
	case calldata.TypeAddress, calldata.TypeUint256, calldata.TypeUint160, calldata.TypeUint24,
		calldata.TypeAddressArray, calldata.TypeV3Path, calldata.TypeCalls:
		return true
	default:
		return false
	}
}

// WatchSet combines the tables' watch list with entries from flags or env.
// An entry is "0xaddr" or "0xaddr=name"; names maps addresses to display names.
func (t Tables) WatchSet(entries []string, names map[string]string) (*model.WatchSet, error) {
	watch := model.NewWatchSet()
	for _, address := range t.Watch.Addresses() {
		watch.Add(address.Hex(), t.Watch.Name(address))
	}
	for _, entry := range entries {
		address, name, _ := strings.Cut(entry, "=")
		address = strings.TrimSpace(address)
		if _, err := ParseAddress(address); err != nil {
			return nil, fmt.Errorf("watch entry: %w", err)
		}
		watch.Add(address, strings.TrimSpace(name))
	}
	for address, name := range names {
		if _, err := ParseAddress(address); err != nil {
			return nil, fmt.Errorf("watch name: %w", err)
		}
		watch.Add(address, name)
	}
	return watch, nil
}

// ParseAddress validates and converts a hex address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseHashes converts 32-byte hex strings such as topics or transaction hashes.
func ParseHashes(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid hash: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid hash length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

// ParseSelector validates a 4-byte method selector.
func ParseSelector(input string) (string, error) {
	selector := calldata.NormalizeSelector(input)
	data, err := hexutil.Decode(selector)
	if err != nil || len(data) != 4 {
		return "", fmt.Errorf("invalid selector: %q", input)
	}
	return selector, nil
}
