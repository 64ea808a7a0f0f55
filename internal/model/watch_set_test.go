package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestWatchSetCaseInsensitive(t *testing.T) {
	w := NewWatchSet()
	w.Add("0xAbCdEf0000000000000000000000000000000001", "desk")

	if !w.ContainsString("0xabcdef0000000000000000000000000000000001") {
		t.Fatalf("lowercase lookup failed")
	}
	if !w.ContainsString("0XABCDEF0000000000000000000000000000000001") {
		t.Fatalf("uppercase lookup failed")
	}
	addr := common.HexToAddress("0xabcdef0000000000000000000000000000000001")
	if !w.Contains(addr) {
		t.Fatalf("checksummed lookup failed")
	}
	if w.Name(addr) != "desk" {
		t.Fatalf("name mismatch: %q", w.Name(addr))
	}
	if w.Label(addr) != "desk (0xabcdef0000000000000000000000000000000001)" {
		t.Fatalf("label mismatch: %s", w.Label(addr))
	}
}

func TestWatchSetKeepsNameOnReAdd(t *testing.T) {
	w := NewWatchSet()
	w.Add("0x1111111111111111111111111111111111111111", "alpha")
	w.Add("0x1111111111111111111111111111111111111111", "")
	w.Add("  ", "ignored")

	if w.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", w.Len())
	}
	if got := w.Name(common.HexToAddress("0x1111111111111111111111111111111111111111")); got != "alpha" {
		t.Fatalf("name overwritten: %q", got)
	}
}

func TestNilWatchSet(t *testing.T) {
	var w *WatchSet
	if w.Contains(common.Address{}) || w.Len() != 0 {
		t.Fatalf("nil watch set must be empty")
	}
}
