package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/internal/registry"
	"github.com/core-coin/offramp/pkg/logger"
)

// dialBackoff is how long a chain whose endpoint failed to connect is not redialed.
const dialBackoff = 30 * time.Second

// Pool keeps one connected Client per supported chain, dialed on first use.
// Dials run outside the pool lock and concurrent dials of one chain are shared.
type Pool struct {
	logger   *logger.Logger
	registry *registry.Registry
	now      func() time.Time

	mu      sync.Mutex
	clients map[int64]*Client
	failed  map[int64]dialFailure
	dials   singleflight.Group
}

type dialFailure struct {
	err error
	at  time.Time
}

// NewPool creates a new Pool instance.
func NewPool(registry *registry.Registry, logger *logger.Logger) *Pool {
	return &Pool{
		logger:   logger,
		registry: registry,
		now:      time.Now,
		clients:  make(map[int64]*Client),
		failed:   make(map[int64]dialFailure),
	}
}

// Client returns the connected client for chainID, dialing it if needed. After a
// failed dial the chain reports the same failure until dialBackoff has passed.
func (p *Pool) Client(ctx context.Context, chainID int64) (*Client, error) {
	if client, err := p.cached(chainID); client != nil || err != nil {
		return client, err
	}

	chain, err := p.registry.Lookup(chainID)
	if err != nil {
		return nil, err
	}

	result, err, _ := p.dials.Do(strconv.FormatInt(chainID, 10), func() (interface{}, error) {
		if client, err := p.cached(chainID); client != nil || err != nil {
			return client, err
		}

		client := NewClient(chainID, chain.RPCURL, p.logger)
		if err := client.Connect(ctx); err != nil {
			err = fmt.Errorf("failed to connect to chain %d: %w", chainID, err)
			if ctx.Err() == nil {
				p.mu.Lock()
				p.failed[chainID] = dialFailure{err: err, at: p.now()}
				p.mu.Unlock()
			}
			return nil, err
		}

		p.mu.Lock()
		p.clients[chainID] = client
		delete(p.failed, chainID)
		p.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Client), nil
}

func (p *Pool) cached(chainID int64) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[chainID]; ok {
		return client, nil
	}
	if failure, ok := p.failed[chainID]; ok && p.now().Sub(failure.at) < dialBackoff {
		return nil, failure.err
	}
	return nil, nil
}

// Backend returns the raw go-ethereum client for chainID.
func (p *Pool) Backend(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	client, err := p.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client.Eth(), nil
}

func (p *Pool) NativeBalance(ctx context.Context, chainID int64, owner common.Address) (*big.Int, error) {
	client, err := p.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client.NativeBalance(ctx, owner)
}

func (p *Pool) TokenBalance(ctx context.Context, chainID int64, token, owner common.Address) (*big.Int, error) {
	client, err := p.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client.TokenBalance(ctx, token, owner)
}

func (p *Pool) TokenDecimals(ctx context.Context, chainID int64, token common.Address) (uint8, error) {
	client, err := p.Client(ctx, chainID)
	if err != nil {
		return 0, err
	}
	return client.TokenDecimals(ctx, token)
}

// Close closes every open client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, client := range p.clients {
		client.Close()
		delete(p.clients, id)
	}
}

var _ models.ChainReader = (*Pool)(nil)
