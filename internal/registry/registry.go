package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
	"github.com/core-coin/offramp/pkg/validation"
)

const defaultNativeDecimals = 18

// ChainConfig is one entry of the chains file.
type ChainConfig struct {
	ChainID        int64         `mapstructure:"chain_id"`
	Name           string        `mapstructure:"name"`
	NativeSymbol   string        `mapstructure:"native_symbol"`
	NativeDecimals uint8         `mapstructure:"native_decimals"`
	CustodyAddress string        `mapstructure:"custody_address"`
	ExplorerTxURL  string        `mapstructure:"explorer_tx_url"`
	RPCURL         string        `mapstructure:"rpc_url"`
	Tokens         []TokenConfig `mapstructure:"tokens"`
}

// TokenConfig is one ERC-20 token listed for a chain.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// Registry maps chain ids to their descriptors and token lists.
// It is built once at startup and never mutated afterwards.
type Registry struct {
	chains map[int64]models.ChainDescriptor
	tokens map[int64][]models.TokenDescriptor
}

// New builds a registry from chain configs. Chains without a valid checksummed
// custody address, or without an RPC endpoint, are left out and logged.
func New(log *logger.Logger, configs ...ChainConfig) *Registry {
	r := &Registry{
		chains: make(map[int64]models.ChainDescriptor),
		tokens: make(map[int64][]models.TokenDescriptor),
	}

	for _, cfg := range configs {
		if _, exists := r.chains[cfg.ChainID]; exists {
			log.Warn("Duplicate chain in registry, keeping the first entry", "chain_id", cfg.ChainID)
			continue
		}
		if err := validation.ValidateChecksumAddress(cfg.CustodyAddress); err != nil {
			log.Warn("Chain has no valid custody address, treating it as unsupported", "chain_id", cfg.ChainID, "error", err)
			continue
		}
		if cfg.RPCURL == "" {
			log.Warn("Chain has no RPC URL, treating it as unsupported", "chain_id", cfg.ChainID)
			continue
		}

		decimals := cfg.NativeDecimals
		if decimals == 0 {
			decimals = defaultNativeDecimals
		}

		descriptor := models.ChainDescriptor{
			ChainID:               cfg.ChainID,
			Name:                  cfg.Name,
			NativeSymbol:          cfg.NativeSymbol,
			NativeDecimals:        decimals,
			CustodyAddress:        common.HexToAddress(cfg.CustodyAddress),
			ExplorerTxURLTemplate: cfg.ExplorerTxURL,
			RPCURL:                cfg.RPCURL,
		}
		r.chains[cfg.ChainID] = descriptor
		r.tokens[cfg.ChainID] = buildTokens(log, descriptor, cfg.Tokens)
	}

	return r
}

func buildTokens(log *logger.Logger, chain models.ChainDescriptor, configs []TokenConfig) []models.TokenDescriptor {
	tokens := []models.TokenDescriptor{chain.NativeToken()}
	seenAddress := map[common.Address]bool{models.NativeTokenAddress: true}
	seenSymbol := map[string]bool{strings.ToUpper(chain.NativeSymbol): true}

	for _, t := range configs {
		if err := validation.ValidateAddress(t.Address); err != nil {
			log.Warn("Skipping token with invalid address", "chain_id", chain.ChainID, "symbol", t.Symbol, "error", err)
			continue
		}
		if t.Decimals == 0 {
			log.Warn("Skipping token without decimals", "chain_id", chain.ChainID, "symbol", t.Symbol)
			continue
		}
		address := common.HexToAddress(t.Address)
		symbol := strings.ToUpper(t.Symbol)
		if seenAddress[address] || seenSymbol[symbol] {
			log.Warn("Skipping duplicate token", "chain_id", chain.ChainID, "symbol", t.Symbol, "address", t.Address)
			continue
		}
		seenAddress[address] = true
		seenSymbol[symbol] = true

		tokens = append(tokens, models.TokenDescriptor{
			Symbol:   t.Symbol,
			Name:     t.Name,
			Address:  address,
			Decimals: t.Decimals,
			ChainID:  chain.ChainID,
		})
	}
	return tokens
}

// Load reads the chains file at path and merges it over DefaultChains by chain id.
// An empty path yields the defaults only, which have no custody addresses.
func Load(path string, log *logger.Logger) (*Registry, error) {
	configs := DefaultChains()
	if path == "" {
		return New(log, configs...), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read chains file: %w", err)
	}

	var fileChains []ChainConfig
	if err := v.UnmarshalKey("chains", &fileChains); err != nil {
		return nil, fmt.Errorf("failed to parse chains file: %w", err)
	}

	return New(log, mergeChains(configs, fileChains)...), nil
}

func mergeChains(base, overrides []ChainConfig) []ChainConfig {
	index := make(map[int64]int, len(base))
	merged := make([]ChainConfig, len(base))
	copy(merged, base)
	for i, c := range merged {
		index[c.ChainID] = i
	}

	for _, o := range overrides {
		i, ok := index[o.ChainID]
		if !ok {
			index[o.ChainID] = len(merged)
			merged = append(merged, o)
			continue
		}
		c := &merged[i]
		if o.Name != "" {
			c.Name = o.Name
		}
		if o.NativeSymbol != "" {
			c.NativeSymbol = o.NativeSymbol
		}
		if o.NativeDecimals != 0 {
			c.NativeDecimals = o.NativeDecimals
		}
		if o.CustodyAddress != "" {
			c.CustodyAddress = o.CustodyAddress
		}
		if o.ExplorerTxURL != "" {
			c.ExplorerTxURL = o.ExplorerTxURL
		}
		if o.RPCURL != "" {
			c.RPCURL = o.RPCURL
		}
		if len(o.Tokens) > 0 {
			c.Tokens = o.Tokens
		}
	}
	return merged
}

// Resolve returns the descriptor for chainID. The boolean is false when the chain
// is not supported, so callers can prompt for a network switch.
func (r *Registry) Resolve(chainID int64) (models.ChainDescriptor, bool) {
	c, ok := r.chains[chainID]
	return c, ok
}

// Lookup is Resolve for callers that want an error value.
func (r *Registry) Lookup(chainID int64) (models.ChainDescriptor, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return models.ChainDescriptor{}, fmt.Errorf("%w: %d", models.ErrUnsupportedChain, chainID)
	}
	return c, nil
}

// ChainIDs returns the supported chain ids in ascending order.
func (r *Registry) ChainIDs() []int64 {
	ids := make([]int64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Chains returns all supported descriptors ordered by chain id.
func (r *Registry) Chains() []models.ChainDescriptor {
	ids := r.ChainIDs()
	chains := make([]models.ChainDescriptor, 0, len(ids))
	for _, id := range ids {
		chains = append(chains, r.chains[id])
	}
	return chains
}

// Tokens returns the token list of a chain, native coin first.
func (r *Registry) Tokens(chainID int64) []models.TokenDescriptor {
	tokens := r.tokens[chainID]
	out := make([]models.TokenDescriptor, len(tokens))
	copy(out, tokens)
	return out
}

// Token looks a token up by symbol (case-insensitive).
func (r *Registry) Token(chainID int64, symbol string) (models.TokenDescriptor, error) {
	if _, ok := r.chains[chainID]; !ok {
		return models.TokenDescriptor{}, fmt.Errorf("%w: %d", models.ErrUnsupportedChain, chainID)
	}
	for _, t := range r.tokens[chainID] {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	return models.TokenDescriptor{}, fmt.Errorf("%w: %s on chain %d", models.ErrTokenNotFound, symbol, chainID)
}
