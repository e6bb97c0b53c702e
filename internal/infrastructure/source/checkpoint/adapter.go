// Package checkpoint normalizes object-checkpoint deposit events served by a
// JSON-RPC gateway. Positions are checkpoint sequence numbers; checkpoints
// are final once sequenced, so these chains typically run with a confirmation
// depth of 1.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	srctypes "github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
	"github.com/stablepay/vault-indexer/internal/orderid"
)

// Adapter queries a checkpoint gateway for vault deposit events
type Adapter struct {
	chainID  string
	contract string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewAdapter creates a checkpoint event source for one vault object
func NewAdapter(chainID, contractAddress, endpoint string, timeout time.Duration, logger *zap.Logger) *Adapter {
	return &Adapter{
		chainID:  chainID,
		contract: strings.ToLower(contractAddress),
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ChainID identifies the chain this source observes
func (a *Adapter) ChainID() string {
	return a.chainID
}

// ContractAddress identifies the vault object this source observes
func (a *Adapter) ContractAddress() string {
	return a.contract
}

// Close releases the underlying client
func (a *Adapter) Close() {
	a.client.CloseIdleConnections()
}

// rpcRequest is a JSON-RPC 2.0 request envelope
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rawEvent is the gateway's wire shape for one deposit event
type rawEvent struct {
	Checkpoint  int64  `json:"checkpoint"`
	TxDigest    string `json:"tx_digest"`
	EventSeq    int64  `json:"event_seq"`
	OrderID     string `json:"order_id"`
	Payer       string `json:"payer"`
	Amount      string `json:"amount"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// HeadPosition returns the latest checkpoint sequence number
func (a *Adapter) HeadPosition(ctx context.Context) (int64, error) {
	var head int64
	if err := a.call(ctx, "vault_getLatestCheckpoint", nil, &head); err != nil {
		return 0, err
	}
	return head, nil
}

// FetchEvents returns canonical deposit events in a checkpoint range
func (a *Adapter) FetchEvents(ctx context.Context, from, to int64) ([]srctypes.CanonicalEvent, error) {
	if from > to {
		return nil, nil
	}

	var raw []rawEvent
	params := []interface{}{a.contract, from, to}
	if err := a.call(ctx, "vault_getDepositEvents", params, &raw); err != nil {
		return nil, err
	}

	events := make([]srctypes.CanonicalEvent, 0, len(raw))
	for _, r := range raw {
		ev, err := a.decodeEvent(r)
		if err != nil {
			a.logger.Warn("Skipping undecodable deposit event",
				zap.String("chain_id", a.chainID),
				zap.String("tx_digest", r.TxDigest),
				zap.Error(err),
			)
			continue
		}
		events = append(events, *ev)
	}

	return events, nil
}

// decodeEvent converts one wire event into the canonical shape
func (a *Adapter) decodeEvent(r rawEvent) (*srctypes.CanonicalEvent, error) {
	if r.TxDigest == "" {
		return nil, fmt.Errorf("missing tx digest")
	}

	rawID := strings.TrimPrefix(strings.ToLower(r.OrderID), "0x")
	idBytes, err := hex.DecodeString(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", r.OrderID, err)
	}
	if len(idBytes) != 32 {
		return nil, fmt.Errorf("invalid order id length: expected 32 bytes, got %d", len(idBytes))
	}

	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", r.Amount)
	}

	return &srctypes.CanonicalEvent{
		ChainID:         a.chainID,
		ContractAddress: a.contract,
		Payer:           strings.ToLower(r.Payer),
		OrderID:         orderid.Canonicalize(idBytes),
		Amount:          amount.String(),
		TxID:            r.TxDigest,
		EventIndex:      r.EventSeq,
		Position:        r.Checkpoint,
		Timestamp:       time.UnixMilli(r.TimestampMS).UTC(),
	}, nil
}

// call performs one JSON-RPC round trip
func (a *Adapter) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	return nil
}
