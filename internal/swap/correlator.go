package swap

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

// Correlate returns the logs of tx whose signature is one of sigs, sorted by log index.
func Correlate(tx model.TransactionContext, sigs ...common.Hash) []model.LogEvent {
	wanted := make(map[common.Hash]struct{}, len(sigs))
	for _, sig := range sigs {
		wanted[sig] = struct{}{}
	}
	out := make([]model.LogEvent, 0, len(tx.Logs))
	for _, log := range tx.Logs {
		if len(log.Topics) == 0 {
			continue
		}
		if _, ok := wanted[log.Topics[0]]; ok {
			out = append(out, log)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// GroupByContract buckets logs by emitting contract, keeping order within each bucket.
func GroupByContract(logs []model.LogEvent) map[common.Address][]model.LogEvent {
	groups := make(map[common.Address][]model.LogEvent)
	for _, log := range logs {
		groups[log.Address] = append(groups[log.Address], log)
	}
	return groups
}

// DistinctContracts counts the contracts that emitted logs.
func DistinctContracts(logs []model.LogEvent) int {
	seen := make(map[common.Address]struct{}, len(logs))
	for _, log := range logs {
		seen[log.Address] = struct{}{}
	}
	return len(seen)
}
