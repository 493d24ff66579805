package balances

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

// fetchTimeout bounds one all-chain refetch.
const fetchTimeout = 30 * time.Second

// Fetcher produces balance snapshots.
type Fetcher interface {
	FetchBalances(ctx context.Context, address common.Address, chainIDs []int64) models.BalanceSnapshot
}

// Cache keeps recent all-chain snapshots per address and refreshes watched addresses
// in the background.
type Cache struct {
	logger          *logger.Logger
	fetcher         Fetcher
	staleAfter      time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	mu        sync.RWMutex
	snapshots map[common.Address]models.BalanceSnapshot
	watched   map[common.Address]struct{}
	group     singleflight.Group

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCache creates a balance cache. Snapshots older than staleAfter are refetched on read.
func NewCache(logger *logger.Logger, fetcher Fetcher, staleAfter, refreshInterval time.Duration) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		logger:          logger,
		fetcher:         fetcher,
		staleAfter:      staleAfter,
		refreshInterval: refreshInterval,
		now:             time.Now,
		snapshots:       make(map[common.Address]models.BalanceSnapshot),
		watched:         make(map[common.Address]struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Get returns the balances of address, limited to chainIDs when given. A fresh
// snapshot is served from memory; a stale or missing one is refetched. Concurrent
// refetches of one address share a single fetch, which outlives a caller that gives
// up: that caller gets the previous snapshot, or an empty one.
func (c *Cache) Get(ctx context.Context, address common.Address, chainIDs []int64) models.BalanceSnapshot {
	c.mu.RLock()
	snapshot, ok := c.snapshots[address]
	c.mu.RUnlock()

	if !ok || c.now().Sub(snapshot.FetchedAt) >= c.staleAfter {
		results := c.group.DoChan(address.Hex(), func() (interface{}, error) {
			return c.fetch(address)
		})
		select {
		case res := <-results:
			if res.Err == nil {
				snapshot = res.Val.(models.BalanceSnapshot)
			}
		case <-ctx.Done():
		}
		if snapshot.Address == (common.Address{}) {
			snapshot = models.BalanceSnapshot{Address: address, FetchedAt: c.now()}
		}
	}

	return filterChains(snapshot, chainIDs)
}

// fetch reads every chain for address and caches the result unless the fetch was cut short.
func (c *Cache) fetch(address common.Address) (models.BalanceSnapshot, error) {
	ctx, cancel := context.WithTimeout(c.ctx, fetchTimeout)
	defer cancel()

	snapshot := c.fetcher.FetchBalances(ctx, address, nil)
	if err := ctx.Err(); err != nil {
		c.logger.Warn("Balance fetch cut short, not caching", "address", address.Hex(), "error", err)
		return snapshot, err
	}
	c.store(snapshot)
	return snapshot, nil
}

// Invalidate drops the cached snapshot of address, e.g. after a transfer.
func (c *Cache) Invalidate(address common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, address)
}

// Watch adds address to the set refreshed every refresh interval.
func (c *Cache) Watch(address common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watched[address] = struct{}{}
}

// Unwatch stops background refreshes of address.
func (c *Cache) Unwatch(address common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watched, address)
}

// StartPeriodicRefresh starts a goroutine refreshing watched addresses.
func (c *Cache) StartPeriodicRefresh() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.refreshWatched()
			case <-c.ctx.Done():
				c.logger.Info("Balance refresh stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the refresh loop
func (c *Cache) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) refreshWatched() {
	c.mu.RLock()
	addresses := make([]common.Address, 0, len(c.watched))
	for addr := range c.watched {
		addresses = append(addresses, addr)
	}
	c.mu.RUnlock()

	for _, addr := range addresses {
		snapshot := c.fetcher.FetchBalances(c.ctx, addr, nil)
		if c.ctx.Err() != nil {
			return
		}
		c.store(snapshot)
		c.logger.Debug("Balances refreshed", "address", addr.Hex(), "balances", len(snapshot.Balances))
	}
}

func (c *Cache) store(snapshot models.BalanceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshot.Address] = snapshot
}

func filterChains(snapshot models.BalanceSnapshot, chainIDs []int64) models.BalanceSnapshot {
	if len(chainIDs) == 0 {
		out := snapshot
		out.Balances = append([]models.TokenBalance(nil), snapshot.Balances...)
		return out
	}

	wanted := make(map[int64]struct{}, len(chainIDs))
	for _, id := range chainIDs {
		wanted[id] = struct{}{}
	}

	out := snapshot
	out.Balances = make([]models.TokenBalance, 0, len(snapshot.Balances))
	for _, b := range snapshot.Balances {
		if _, ok := wanted[b.ChainID]; ok {
			out.Balances = append(out.Balances, b)
		}
	}
	return out
}
