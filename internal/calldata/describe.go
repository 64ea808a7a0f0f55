package calldata

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// Tokens resolves display metadata for tokens named in call data.
type Tokens interface {
	Token(address common.Address) model.TokenInfo
}

// Labeler renders an address for display, e.g. with a watch list name.
type Labeler func(address common.Address) string

// Description is the human-facing reading of a router call.
type Description struct {
	Router string
	Method string
	Lines  []string
	Result Result
}

// maxInnerCalls bounds how many multicall entries are described.
const maxInnerCalls = 8

// Describe decodes and renders a call to a known router. It returns false when the
// target or selector is unknown.
func (t *RouterTable) Describe(to common.Address, input []byte, tokens Tokens, label Labeler) (Description, bool) {
	router, layout, ok := t.Lookup(to, input)
	if !ok {
		return Description{}, false
	}
	result := Decode(input, layout)
	observeDecode(result)

	desc := Description{
		Router: router.Name,
		Method: layout.Method,
		Result: result,
		Lines:  describeResult(result, tokens, label),
	}

	if calls, ok := result.Field("data"); ok && len(calls.Calls) > 0 {
		methods := t.methodsFor(router)
		desc.Lines = append(desc.Lines, fmt.Sprintf("Multicall: %d inner calls", len(calls.Calls)))
		for i, call := range calls.Calls {
			if i == maxInnerCalls {
				desc.Lines = append(desc.Lines, fmt.Sprintf("  ... %d more", len(calls.Calls)-i))
				break
			}
			inner, ok := methods[SelectorOf(call)]
			if !ok {
				desc.Lines = append(desc.Lines, fmt.Sprintf("  [%d] unknown selector %s", i, SelectorOf(call)))
				continue
			}
			innerResult := Decode(call, inner)
			observeDecode(innerResult)
			desc.Lines = append(desc.Lines, fmt.Sprintf("  [%d] %s", i, inner.Method))
			for _, line := range describeResult(innerResult, tokens, label) {
				desc.Lines = append(desc.Lines, "    "+line)
			}
		}
	}
	return desc, true
}

func (t *RouterTable) methodsFor(router Router) map[string]Layout {
	if router.Type == RouterV3Proxy && len(router.Methods) == 0 {
		if impl, ok := t.Router(router.Implementation); ok {
			return impl.Methods
		}
	}
	return router.Methods
}

func observeDecode(result Result) {
	status := "ok"
	if !result.Complete() {
		status = "partial"
	}
	metrics.CallDataDecodes.WithLabelValues(status).Inc()
}

func describeResult(result Result, tokens Tokens, label Labeler) []string {
	if label == nil {
		label = func(address common.Address) string { return strings.ToLower(address.Hex()) }
	}

	var tokenIn, tokenOut *common.Address
	if v, ok := result.Field("tokenIn"); ok {
		tokenIn = &v.Address
	}
	if v, ok := result.Field("tokenOut"); ok {
		tokenOut = &v.Address
	}
	for _, v := range result.Fields {
		if len(v.Path) > 0 && v.Type != TypeCalls {
			if tokenIn == nil {
				tokenIn = &v.Path[0]
			}
			if tokenOut == nil {
				tokenOut = &v.Path[len(v.Path)-1]
			}
		}
	}

	symbol := func(address common.Address) string {
		if tokens == nil {
			return strings.ToLower(address.Hex())
		}
		return tokens.Token(address).Symbol
	}
	amount := func(raw *big.Int, token *common.Address) string {
		if token == nil || tokens == nil {
			return raw.String()
		}
		info := tokens.Token(*token)
		return model.FormatAmount(raw, info.Decimals) + " " + info.Symbol
	}

	var lines []string
	if tokenIn != nil && tokenOut != nil {
		if _, ok := result.Field("tokenIn"); ok {
			lines = append(lines, fmt.Sprintf("Pair: %s -> %s", symbol(*tokenIn), symbol(*tokenOut)))
		}
	}

	for _, v := range result.Fields {
		switch {
		case v.Type == TypeCalls:
			continue
		case v.Type == TypeAddressArray || v.Type == TypeV3Path:
			names := make([]string, 0, len(v.Path))
			for _, hop := range v.Path {
				names = append(names, symbol(hop))
			}
			line := fmt.Sprintf("Path: %s (%d hops)", strings.Join(names, " -> "), max(len(v.Path)-1, 0))
			if len(v.Fees) > 0 {
				fees := make([]string, 0, len(v.Fees))
				for _, fee := range v.Fees {
					fees = append(fees, feePercent(fee))
				}
				line += " fees " + strings.Join(fees, ", ")
			}
			lines = append(lines, line)
		case v.Name == "tokenIn" || v.Name == "tokenOut":
			continue
		case v.Type == TypeAddress:
			lines = append(lines, fmt.Sprintf("%s: %s", fieldLabel(v.Name), label(v.Address)))
		case v.Name == "fee":
			lines = append(lines, "Fee tier: "+feePercent(uint32(v.Int.Uint64())))
		case v.Name == "deadline":
			lines = append(lines, "Deadline: "+formatDeadline(v.Int))
		case v.Name == "sqrtPriceLimitX96":
			if v.Int.Sign() != 0 {
				lines = append(lines, "Price limit (sqrtX96): "+v.Int.String())
			}
		case strings.HasPrefix(v.Name, "amountIn"):
			lines = append(lines, fmt.Sprintf("%s: %s", fieldLabel(v.Name), amount(v.Int, tokenIn)))
		case strings.HasPrefix(v.Name, "amountOut"):
			lines = append(lines, fmt.Sprintf("%s: %s", fieldLabel(v.Name), amount(v.Int, tokenOut)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s", fieldLabel(v.Name), v.Int.String()))
		}
	}

	if len(result.Missing) > 0 {
		lines = append(lines, "Decode incomplete: missing "+strings.Join(result.Missing, ", "))
	}
	return lines
}

var fieldLabels = map[string]string{
	"amountIn":         "Amount in",
	"amountOut":        "Amount out",
	"amountOutMin":     "Min out",
	"amountOutMinimum": "Min out",
	"amountInMax":      "Max in",
	"amountInMaximum":  "Max in",
	"to":               "Recipient",
	"recipient":        "Recipient",
}

func fieldLabel(name string) string {
	if label, ok := fieldLabels[name]; ok {
		return label
	}
	return name
}

func feePercent(fee uint32) string {
	return model.FormatAmount(new(big.Int).SetUint64(uint64(fee)), 4) + "%"
}

func formatDeadline(v *big.Int) string {
	if !v.IsInt64() || v.Int64() > 1<<40 {
		return v.String()
	}
	return time.Unix(v.Int64(), 0).UTC().Format(time.RFC3339)
}
