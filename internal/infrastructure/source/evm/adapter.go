package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	srctypes "github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
	"github.com/stablepay/vault-indexer/internal/orderid"
)

// DepositEventSignature is keccak256 of Deposit(bytes32,address,uint256):
// the vault contract's deposit event with the order id and payer indexed
var DepositEventSignature = crypto.Keccak256Hash([]byte("Deposit(bytes32,address,uint256)"))

const timestampWorkers = 4

// Adapter normalizes EVM vault Deposit logs into canonical events
type Adapter struct {
	chainID  string
	contract common.Address
	client   *Client
	logger   *zap.Logger
}

// NewAdapter creates an EVM event source for one vault contract
func NewAdapter(chainID, contractAddress, rpcURL string, timeout time.Duration, logger *zap.Logger) (*Adapter, error) {
	client, err := NewClient(rpcURL, timeout, logger)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		chainID:  chainID,
		contract: common.HexToAddress(contractAddress),
		client:   client,
		logger:   logger,
	}, nil
}

// ChainID identifies the chain this source observes
func (a *Adapter) ChainID() string {
	return a.chainID
}

// ContractAddress identifies the vault contract this source observes
func (a *Adapter) ContractAddress() string {
	return strings.ToLower(a.contract.Hex())
}

// Close releases the underlying client
func (a *Adapter) Close() {
	a.client.Close()
}

// HeadPosition returns the latest block number
func (a *Adapter) HeadPosition(ctx context.Context) (int64, error) {
	n, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// FetchEvents returns canonical deposit events for a block range
func (a *Adapter) FetchEvents(ctx context.Context, from, to int64) ([]srctypes.CanonicalEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   big.NewInt(to),
		Addresses: []common.Address{a.contract},
		Topics:    [][]common.Hash{{DepositEventSignature}},
	}

	logs, err := a.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(logs) == 0 {
		return nil, nil
	}

	timestamps, err := a.fetchBlockTimestamps(ctx, logs)
	if err != nil {
		return nil, err
	}

	events := make([]srctypes.CanonicalEvent, 0, len(logs))
	for _, log := range logs {
		ev, err := a.decodeLog(log, timestamps[log.BlockNumber])
		if err != nil {
			// A malformed log on the watched topic is a contract bug, not
			// a transient condition; skip it rather than wedging the scan.
			a.logger.Warn("Skipping undecodable deposit log",
				zap.String("chain_id", a.chainID),
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		events = append(events, *ev)
	}

	return events, nil
}

// decodeLog parses one vault Deposit log into a canonical event
func (a *Adapter) decodeLog(log types.Log, timestamp time.Time) (*srctypes.CanonicalEvent, error) {
	// Topics[1] = order id (bytes32), Topics[2] = payer (padded address)
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}
	if log.Topics[0] != DepositEventSignature {
		return nil, fmt.Errorf("not a Deposit event")
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	payer := common.BytesToAddress(log.Topics[2].Bytes())
	amount := new(big.Int).SetBytes(log.Data)

	return &srctypes.CanonicalEvent{
		ChainID:         a.chainID,
		ContractAddress: strings.ToLower(log.Address.Hex()),
		Payer:           strings.ToLower(payer.Hex()),
		OrderID:         orderid.Canonicalize(log.Topics[1].Bytes()),
		Amount:          amount.String(),
		TxID:            log.TxHash.Hex(),
		EventIndex:      int64(log.Index),
		Position:        int64(log.BlockNumber),
		Timestamp:       timestamp,
	}, nil
}

// fetchBlockTimestamps fetches timestamps for the logs' blocks concurrently
func (a *Adapter) fetchBlockTimestamps(ctx context.Context, logs []types.Log) (map[uint64]time.Time, error) {
	blockNumbers := make(map[uint64]struct{})
	for _, log := range logs {
		blockNumbers[log.BlockNumber] = struct{}{}
	}

	timestamps := make(map[uint64]time.Time)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(timestampWorkers)

	for blockNum := range blockNumbers {
		blockNum := blockNum
		g.Go(func() error {
			ts, err := a.client.BlockTimestamp(ctx, blockNum)
			if err != nil {
				return err
			}

			mu.Lock()
			timestamps[blockNum] = ts
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return timestamps, nil
}
