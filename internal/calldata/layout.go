package calldata

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FieldType is the ABI shape of a call data field.
type FieldType string

const (
	TypeAddress      FieldType = "address"
	TypeUint256      FieldType = "uint256"
	TypeUint160      FieldType = "uint160"
	TypeUint24       FieldType = "uint24"
	TypeAddressArray FieldType = "address[]"
	// TypeV3Path is a packed token/fee/token byte path.
	TypeV3Path FieldType = "v3path"
	// TypeCalls is a bytes[] of nested router calls.
	TypeCalls FieldType = "bytes[]"
)

// Dynamic reports whether the field's word is a pointer to tail data.
func (t FieldType) Dynamic() bool {
	switch t {
	case TypeAddressArray, TypeV3Path, TypeCalls:
		return true
	default:
		return false
	}
}

// Field locates one argument. Offset is the byte offset of its 32-byte word in the
// argument block after the selector. Base is what a dynamic pointer is relative to.
type Field struct {
	Name   string    `mapstructure:"name"`
	Type   FieldType `mapstructure:"type"`
	Offset int       `mapstructure:"offset"`
	Base   int       `mapstructure:"base"`
}

// Layout is the decode template for one router method.
type Layout struct {
	Method string  `mapstructure:"name"`
	Fields []Field `mapstructure:"fields"`
}

// RouterType classifies known router contracts.
type RouterType string

const (
	RouterV2      RouterType = "DEX"
	RouterV3      RouterType = "DEX_V3"
	RouterV3Proxy RouterType = "DEX_V3_PROXY"
)

// Router is a known contract with its method templates keyed by lowercase selector.
type Router struct {
	Address        common.Address
	Name           string
	Type           RouterType
	Implementation common.Address
	Methods        map[string]Layout
}

// RouterTable is an immutable lookup of known routers.
type RouterTable struct {
	routers map[common.Address]Router
}

func NewRouterTable(routers []Router) *RouterTable {
	table := &RouterTable{routers: make(map[common.Address]Router, len(routers))}
	for _, router := range routers {
		methods := make(map[string]Layout, len(router.Methods))
		for selector, layout := range router.Methods {
			methods[NormalizeSelector(selector)] = layout
		}
		router.Methods = methods
		table.routers[router.Address] = router
	}
	return table
}

// Router returns the router registered at address.
func (t *RouterTable) Router(address common.Address) (Router, bool) {
	if t == nil {
		return Router{}, false
	}
	router, ok := t.routers[address]
	return router, ok
}

// Len returns the number of known routers.
func (t *RouterTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routers)
}

// Lookup resolves the router and method template for a call. Proxies resolve
// methods through their implementation.
func (t *RouterTable) Lookup(to common.Address, input []byte) (Router, Layout, bool) {
	router, ok := t.Router(to)
	if !ok || len(input) < 4 {
		return router, Layout{}, false
	}
	layout, ok := t.methodsFor(router)[SelectorOf(input)]
	return router, layout, ok
}

// SelectorOf returns the lowercase 0x-prefixed selector of input.
func SelectorOf(input []byte) string {
	if len(input) < 4 {
		return ""
	}
	return "0x" + common.Bytes2Hex(input[:4])
}

// NormalizeSelector lowercases and prefixes a selector string.
func NormalizeSelector(selector string) string {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if !strings.HasPrefix(selector, "0x") {
		selector = "0x" + selector
	}
	return selector
}
