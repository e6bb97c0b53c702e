// Package source defines the canonical event contract between chain-specific
// decoding and the chain-agnostic ingestion core. Each chain family (EVM log,
// Move resource event, object-checkpoint event) implements EventSource behind
// this boundary, so nothing above it ever branches on chain family.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/checkpoint"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/evm"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/move"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
)

// CanonicalEvent is the chain-agnostic deposit record shape
type CanonicalEvent = types.CanonicalEvent

// EventSource is the per-(chain, contract) capability the scanner consumes
type EventSource interface {
	// ChainID identifies the chain this source observes
	ChainID() string

	// ContractAddress identifies the vault contract this source observes
	ContractAddress() string

	// HeadPosition returns the chain's current head (block height or
	// checkpoint/version sequence)
	HeadPosition(ctx context.Context) (int64, error)

	// FetchEvents returns canonical deposit events in [from, to], inclusive
	FetchEvents(ctx context.Context, from, to int64) ([]CanonicalEvent, error)

	// Close releases the underlying client
	Close()
}

// Statically ensure every adapter satisfies the contract
var (
	_ EventSource = (*evm.Adapter)(nil)
	_ EventSource = (*move.Adapter)(nil)
	_ EventSource = (*checkpoint.Adapter)(nil)
)

// New builds the adapter for a watch target based on its chain's configured
// family
func New(target config.WatchTarget, cfg config.IndexerConfig, logger *zap.Logger) (EventSource, error) {
	family, ok := cfg.ChainFamilies[target.ChainID]
	if !ok {
		return nil, fmt.Errorf("no chain family configured for chain %q", target.ChainID)
	}

	rpcURL, ok := cfg.RPCURLs[target.ChainID]
	if !ok {
		return nil, fmt.Errorf("no RPC URL configured for chain %q", target.ChainID)
	}

	switch family {
	case "evm":
		return evm.NewAdapter(target.ChainID, target.ContractAddress, rpcURL, cfg.RequestTimeout, logger)
	case "move":
		return move.NewAdapter(target.ChainID, target.ContractAddress, rpcURL, cfg.RequestTimeout, logger), nil
	case "checkpoint":
		return checkpoint.NewAdapter(target.ChainID, target.ContractAddress, rpcURL, cfg.RequestTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown chain family %q for chain %q", family, target.ChainID)
	}
}
