package pipeline

import (
	"fmt"
	"html"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/calldata"
	"swapScope/internal/model"
	"swapScope/internal/swap"
)

// FormatSwap renders the Telegram HTML text of a swap alert.
func FormatSwap(record model.SwapRecord, actor string, desc *calldata.Description, hops []swap.PoolSwap, top []PairCount) string {
	var b strings.Builder
	b.WriteString("Swap detected!\n")
	fmt.Fprintf(&b, "User: %s\n", html.EscapeString(actor))
	fmt.Fprintf(&b, "%s -> %s\n", html.EscapeString(record.Spent.Display()), html.EscapeString(record.Received.Display()))

	for _, line := range DescriptionLines(desc, hops) {
		b.WriteString(html.EscapeString(line))
		b.WriteByte('\n')
	}
	if len(top) > 0 {
		pairs := make([]string, 0, len(top))
		for _, pair := range top {
			pairs = append(pairs, fmt.Sprintf("%s x%d", pair.Pair, pair.Count))
		}
		fmt.Fprintf(&b, "Top pairs: %s\n", html.EscapeString(strings.Join(pairs, ", ")))
	}
	fmt.Fprintf(&b, "TX: %s", record.TxHash.Hex())
	return b.String()
}

// FormatTransfer renders the Telegram HTML text of single-leg activity.
func FormatTransfer(record model.TransferRecord, actor, counterparty string) string {
	verb, preposition := "Sent", "to"
	if record.Direction == model.TransferIn {
		verb, preposition = "Received", "from"
	}
	var b strings.Builder
	b.WriteString("Transfer detected!\n")
	fmt.Fprintf(&b, "User: %s\n", html.EscapeString(actor))
	fmt.Fprintf(&b, "%s %s %s %s\n", verb, html.EscapeString(record.Leg.Display()), preposition, html.EscapeString(counterparty))
	fmt.Fprintf(&b, "TX: %s", record.TxHash.Hex())
	return b.String()
}

// DescriptionLines renders router call data and pool hops as plain lines.
func DescriptionLines(desc *calldata.Description, hops []swap.PoolSwap) []string {
	var lines []string
	if desc != nil {
		lines = append(lines, fmt.Sprintf("Router: %s (%s)", desc.Router, desc.Method))
		lines = append(lines, desc.Lines...)
	}
	if len(hops) > 0 {
		pools := swap.DistinctPools(hops)
		names := make([]string, 0, len(pools))
		for _, pool := range pools {
			names = append(names, shortAddress(pool))
		}
		lines = append(lines, fmt.Sprintf("Hops: %d via %s", len(hops), strings.Join(names, ", ")))
	}
	return lines
}

func shortAddress(address common.Address) string {
	hex := strings.ToLower(address.Hex())
	return hex[:6] + "..." + hex[len(hex)-4:]
}
