package services

import (
	"sync"
	"time"

	"github.com/stablepay/vault-indexer/internal/metrics"
)

// ChainHealth is the observable state of one scanner
type ChainHealth struct {
	ChainID         string    `json:"chain_id"`
	ContractAddress string    `json:"contract_address"`
	Healthy         bool      `json:"healthy"`
	LastError       string    `json:"last_error,omitempty"`
	LastScanAt      time.Time `json:"last_scan_at"`
	LastPosition    int64     `json:"last_position"`
}

// HealthRegistry tracks per-scanner health. A degraded chain never affects
// any other chain's scanner; the registry only records and exposes state.
type HealthRegistry struct {
	mu     sync.RWMutex
	states map[string]*ChainHealth
}

// NewHealthRegistry creates an empty registry
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		states: make(map[string]*ChainHealth),
	}
}

// SetHealthy records a successful scan iteration
func (r *HealthRegistry) SetHealthy(chainID, contractAddress string, position int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(chainID, contractAddress)
	state.Healthy = true
	state.LastError = ""
	state.LastScanAt = time.Now().UTC()
	state.LastPosition = position

	metrics.ScannerUp.WithLabelValues(chainID, contractAddress).Set(1)
}

// SetDegraded records a scanner that exhausted its retry budget
func (r *HealthRegistry) SetDegraded(chainID, contractAddress string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(chainID, contractAddress)
	state.Healthy = false
	if err != nil {
		state.LastError = err.Error()
	}
	state.LastScanAt = time.Now().UTC()

	metrics.ScannerUp.WithLabelValues(chainID, contractAddress).Set(0)
}

// Snapshot returns a copy of every scanner's state
func (r *HealthRegistry) Snapshot() []ChainHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]ChainHealth, 0, len(r.states))
	for _, state := range r.states {
		snapshot = append(snapshot, *state)
	}
	return snapshot
}

func (r *HealthRegistry) state(chainID, contractAddress string) *ChainHealth {
	key := chainID + "|" + contractAddress
	state, ok := r.states[key]
	if !ok {
		state = &ChainHealth{
			ChainID:         chainID,
			ContractAddress: contractAddress,
		}
		r.states[key] = state
	}
	return state
}
