package model

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WatchSet holds watched addresses keyed by lowercase hex.
// It is built at startup and read concurrently afterwards.
type WatchSet struct {
	names map[string]string
}

func NewWatchSet() *WatchSet {
	return &WatchSet{names: make(map[string]string)}
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Add registers an address with an optional display name.
func (w *WatchSet) Add(address string, name string) {
	key := normalizeAddress(address)
	if key == "" {
		return
	}
	if existing, ok := w.names[key]; ok && name == "" {
		name = existing
	}
	w.names[key] = strings.TrimSpace(name)
}

// Contains reports whether the address is watched.
func (w *WatchSet) Contains(address common.Address) bool {
	return w.ContainsString(address.Hex())
}

func (w *WatchSet) ContainsString(address string) bool {
	if w == nil {
		return false
	}
	_, ok := w.names[normalizeAddress(address)]
	return ok
}

// Name returns the display name for an address, if any.
func (w *WatchSet) Name(address common.Address) string {
	if w == nil {
		return ""
	}
	return w.names[normalizeAddress(address.Hex())]
}

func (w *WatchSet) Len() int {
	if w == nil {
		return 0
	}
	return len(w.names)
}

// Addresses returns the watched addresses sorted for stable output.
func (w *WatchSet) Addresses() []common.Address {
	if w == nil {
		return nil
	}
	keys := make([]string, 0, len(w.names))
	for key := range w.names {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]common.Address, 0, len(keys))
	for _, key := range keys {
		out = append(out, common.HexToAddress(key))
	}
	return out
}

// Label renders "name (0x...)" or just the address.
func (w *WatchSet) Label(address common.Address) string {
	lower := strings.ToLower(address.Hex())
	if name := w.Name(address); name != "" {
		return name + " (" + lower + ")"
	}
	return lower
}
