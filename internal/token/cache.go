package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

// Cache stores resolved token metadata. Writes are idempotent per address.
type Cache interface {
	Get(address common.Address) (model.TokenInfo, bool)
	Set(address common.Address, info model.TokenInfo)
}

// MemoryCache caches token metadata by address for the process lifetime.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenInfo
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[common.Address]model.TokenInfo)}
}

func (c *MemoryCache) Get(address common.Address) (model.TokenInfo, bool) {
	c.mu.RLock()
	info, ok := c.data[address]
	c.mu.RUnlock()
	return info, ok
}

func (c *MemoryCache) Set(address common.Address, info model.TokenInfo) {
	c.mu.Lock()
	c.data[address] = info
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
