// Package testutil provides hand-written mocks and fixtures shared by the
// service and handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
)

// MockCall records one invocation of a mock method
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockCursorRepository is an in-memory implementation of CursorRepository
type MockCursorRepository struct {
	mu      sync.RWMutex
	cursors map[string]*entities.ChainCursor

	// Function hooks for custom behavior
	GetFunc     func(ctx context.Context, chainID, contractAddress string) (*entities.ChainCursor, error)
	AdvanceFunc func(ctx context.Context, chainID, contractAddress string, newPosition int64) error

	// Call tracking
	Calls []MockCall
}

func NewMockCursorRepository() *MockCursorRepository {
	return &MockCursorRepository{
		cursors: make(map[string]*entities.ChainCursor),
		Calls:   make([]MockCall, 0),
	}
}

func cursorKey(chainID, contractAddress string) string {
	return chainID + "|" + contractAddress
}

func (m *MockCursorRepository) Get(ctx context.Context, chainID, contractAddress string) (*entities.ChainCursor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{chainID, contractAddress}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, chainID, contractAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cursor, ok := m.cursors[cursorKey(chainID, contractAddress)]
	if !ok {
		return nil, nil
	}
	copied := *cursor
	return &copied, nil
}

func (m *MockCursorRepository) GetAll(ctx context.Context) ([]entities.ChainCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.ChainCursor, 0, len(m.cursors))
	for _, c := range m.cursors {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ChainID != result[j].ChainID {
			return result[i].ChainID < result[j].ChainID
		}
		return result[i].ContractAddress < result[j].ContractAddress
	})
	return result, nil
}

func (m *MockCursorRepository) Advance(ctx context.Context, chainID, contractAddress string, newPosition int64) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Advance", Args: []interface{}{chainID, contractAddress, newPosition}})
	m.mu.Unlock()

	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, chainID, contractAddress, newPosition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := cursorKey(chainID, contractAddress)
	if existing, ok := m.cursors[key]; ok && existing.Position >= newPosition {
		return repositories.ErrStaleAdvance
	}
	m.cursors[key] = &entities.ChainCursor{
		ChainID:         chainID,
		ContractAddress: contractAddress,
		Position:        newPosition,
	}
	return nil
}

// SetCursor seeds a stored cursor position
func (m *MockCursorRepository) SetCursor(chainID, contractAddress string, position int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cursorKey(chainID, contractAddress)] = &entities.ChainCursor{
		ChainID:         chainID,
		ContractAddress: contractAddress,
		Position:        position,
	}
}

// MockSettlementLedger is an in-memory implementation of SettlementLedger. It
// applies the same reconciliation rules as the Postgres implementation so
// scanner and reconciler tests observe realistic end-to-end behavior.
type MockSettlementLedger struct {
	mu sync.Mutex

	Orders    map[string]*entities.Order
	Events    map[string]*entities.DepositEvent
	Cursors   map[string]int64
	Anomalies []entities.Anomaly

	// Function hooks for custom behavior
	ProcessBatchFunc       func(ctx context.Context, chainID, contractAddress string, events []entities.DepositEvent, newPosition int64) (*repositories.BatchResult, error)
	ReprocessUnmatchedFunc func(ctx context.Context, batchSize, maxAttempts int) (*repositories.SweepResult, error)

	// Call tracking
	Calls []MockCall
}

func NewMockSettlementLedger() *MockSettlementLedger {
	return &MockSettlementLedger{
		Orders:  make(map[string]*entities.Order),
		Events:  make(map[string]*entities.DepositEvent),
		Cursors: make(map[string]int64),
		Calls:   make([]MockCall, 0),
	}
}

// AddOrder seeds a registered order
func (m *MockSettlementLedger) AddOrder(order entities.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[order.OrderID] = &order
}

// Order returns the stored order, nil if absent
func (m *MockSettlementLedger) Order(orderID string) *entities.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Orders[orderID]
}

func (m *MockSettlementLedger) ProcessBatch(ctx context.Context, chainID, contractAddress string, events []entities.DepositEvent, newPosition int64) (*repositories.BatchResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "ProcessBatch", Args: []interface{}{chainID, contractAddress, events, newPosition}})
	m.mu.Unlock()

	if m.ProcessBatchFunc != nil {
		return m.ProcessBatchFunc(ctx, chainID, contractAddress, events, newPosition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := cursorKey(chainID, contractAddress)
	if pos, ok := m.Cursors[key]; ok && pos >= newPosition {
		return nil, repositories.ErrStaleAdvance
	}

	result := &repositories.BatchResult{}
	for i := range events {
		event := events[i]
		if _, ok := m.Events[event.DedupKey()]; ok {
			result.Duplicates++
			continue
		}
		result.Stored++
		m.reconcile(&event, result)
		m.Events[event.DedupKey()] = &event
	}

	m.Cursors[key] = newPosition
	return result, nil
}

func (m *MockSettlementLedger) reconcile(event *entities.DepositEvent, result *repositories.BatchResult) {
	order := m.Orders[strings.ToLower(event.OrderID)]

	switch outcome := entities.DecideSettlement(order, event); outcome {
	case entities.OutcomeSettle:
		tx := event.TxID
		order.Status = entities.OrderStatusCompleted
		order.SettledTx = &tx
		event.Processed = true
		result.Settled++
	case entities.OutcomeNoOrder:
		result.Unmatched++
	default:
		// Anomalous deposits never move the order; mismatches fail closed
		// and leave it pending for operator resolution.
		event.Processed = true
		m.Anomalies = append(m.Anomalies, entities.Anomaly{
			OrderID:    event.OrderID,
			ChainID:    event.ChainID,
			TxID:       event.TxID,
			EventIndex: event.EventIndex,
			Reason:     outcome.AnomalyReason(),
		})
		result.Anomalies++
	}
}

func (m *MockSettlementLedger) ReprocessUnmatched(ctx context.Context, batchSize, maxAttempts int) (*repositories.SweepResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "ReprocessUnmatched", Args: []interface{}{batchSize, maxAttempts}})
	m.mu.Unlock()

	if m.ReprocessUnmatchedFunc != nil {
		return m.ReprocessUnmatchedFunc(ctx, batchSize, maxAttempts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := &repositories.SweepResult{}
	for _, event := range m.Events {
		if event.Processed || event.NeedsReview {
			continue
		}
		if result.Examined >= batchSize {
			break
		}
		result.Examined++

		order := m.Orders[strings.ToLower(event.OrderID)]
		if order != nil {
			batch := &repositories.BatchResult{}
			m.reconcile(event, batch)
			result.Settled += batch.Settled
			result.Anomalies += batch.Anomalies
			continue
		}

		event.MatchAttempts++
		if event.MatchAttempts >= maxAttempts {
			event.NeedsReview = true
			m.Anomalies = append(m.Anomalies, entities.Anomaly{
				OrderID:    event.OrderID,
				ChainID:    event.ChainID,
				TxID:       event.TxID,
				EventIndex: event.EventIndex,
				Reason:     entities.AnomalyReasonUnmatched,
			})
			result.GivenUp++
		} else {
			result.StillOpen++
		}
	}
	return result, nil
}

// MockOrderRepository is an in-memory implementation of OrderRepository
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*entities.Order

	// Function hooks for custom behavior
	CreateFunc        func(ctx context.Context, order *entities.Order) error
	GetUnnotifiedFunc func(ctx context.Context, limit int) ([]entities.Order, error)
	MarkNotifiedFunc  func(ctx context.Context, orderID string) error

	// Call tracking
	Calls []MockCall
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*entities.Order),
		Calls:  make([]MockCall, 0),
	}
}

// AddOrder seeds a stored order
func (m *MockOrderRepository) AddOrder(order entities.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderID] = &order
}

// Order returns the stored order, nil if absent
func (m *MockOrderRepository) Order(orderID string) *entities.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID]
}

func (m *MockOrderRepository) Create(ctx context.Context, order *entities.Order) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Create", Args: []interface{}{order.OrderID}})
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.OrderID]; ok {
		return repositories.ErrOrderExists
	}
	copied := *order
	if copied.Status == "" {
		copied.Status = entities.OrderStatusPending
	}
	m.orders[order.OrderID] = &copied
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID string) (*entities.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (m *MockOrderRepository) Cancel(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Cancel", Args: []interface{}{orderID}})

	order, ok := m.orders[orderID]
	if !ok || order.Status != entities.OrderStatusPending {
		return repositories.ErrOrderNotCancellable
	}
	order.Status = entities.OrderStatusCancelled
	return nil
}

func (m *MockOrderRepository) GetUnnotified(ctx context.Context, limit int) ([]entities.Order, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetUnnotified", Args: []interface{}{limit}})
	m.mu.Unlock()

	if m.GetUnnotifiedFunc != nil {
		return m.GetUnnotifiedFunc(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]entities.Order, 0)
	for _, order := range m.orders {
		if order.Notified {
			continue
		}
		if order.Status != entities.OrderStatusCompleted && order.Status != entities.OrderStatusFailed {
			continue
		}
		result = append(result, *order)
		if len(result) >= limit {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrderID < result[j].OrderID })
	return result, nil
}

func (m *MockOrderRepository) MarkNotified(ctx context.Context, orderID string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "MarkNotified", Args: []interface{}{orderID}})
	m.mu.Unlock()

	if m.MarkNotifiedFunc != nil {
		return m.MarkNotifiedFunc(ctx, orderID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[orderID]; ok {
		order.Notified = true
	}
	return nil
}

// MockDepositEventRepository is an in-memory implementation of
// DepositEventRepository
type MockDepositEventRepository struct {
	mu     sync.RWMutex
	events []entities.DepositEvent

	// Function hooks for custom behavior
	GetByFilterFunc func(ctx context.Context, filter entities.DepositEventFilter) ([]entities.DepositEvent, error)
	GetCountFunc    func(ctx context.Context, filter entities.DepositEventFilter) (int64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockDepositEventRepository() *MockDepositEventRepository {
	return &MockDepositEventRepository{
		events: make([]entities.DepositEvent, 0),
		Calls:  make([]MockCall, 0),
	}
}

// AddEvent seeds a stored event
func (m *MockDepositEventRepository) AddEvent(event entities.DepositEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockDepositEventRepository) matches(e *entities.DepositEvent, filter entities.DepositEventFilter) bool {
	if filter.ChainID != nil && e.ChainID != *filter.ChainID {
		return false
	}
	if filter.OrderID != nil && e.OrderID != *filter.OrderID {
		return false
	}
	if filter.Payer != nil && e.Payer != *filter.Payer {
		return false
	}
	if filter.Processed != nil && e.Processed != *filter.Processed {
		return false
	}
	if filter.NeedsReview != nil && e.NeedsReview != *filter.NeedsReview {
		return false
	}
	if filter.FromPosition != nil && e.Position < *filter.FromPosition {
		return false
	}
	if filter.ToPosition != nil && e.Position > *filter.ToPosition {
		return false
	}
	return true
}

func (m *MockDepositEventRepository) GetByFilter(ctx context.Context, filter entities.DepositEventFilter) ([]entities.DepositEvent, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByFilter", Args: []interface{}{filter}})
	m.mu.Unlock()

	if m.GetByFilterFunc != nil {
		return m.GetByFilterFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.DepositEvent, 0)
	for i := range m.events {
		if m.matches(&m.events[i], filter) {
			result = append(result, m.events[i])
		}
	}

	start := filter.Offset
	if start > len(result) {
		return []entities.DepositEvent{}, nil
	}
	end := start + filter.Limit
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (m *MockDepositEventRepository) GetCount(ctx context.Context, filter entities.DepositEventFilter) (int64, error) {
	if m.GetCountFunc != nil {
		return m.GetCountFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for i := range m.events {
		if m.matches(&m.events[i], filter) {
			count++
		}
	}
	return count, nil
}

func (m *MockDepositEventRepository) GetByDedupKey(ctx context.Context, chainID, txID string, eventIndex int64) (*entities.DepositEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.events {
		e := &m.events[i]
		if e.ChainID == chainID && e.TxID == txID && e.EventIndex == eventIndex {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockDepositEventRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for i := range m.events {
		if !m.events[i].Processed && !m.events[i].NeedsReview {
			count++
		}
	}
	return count, nil
}

func (m *MockDepositEventRepository) CountNeedsReview(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for i := range m.events {
		if m.events[i].NeedsReview {
			count++
		}
	}
	return count, nil
}

// MockAnomalyRepository is an in-memory implementation of AnomalyRepository
type MockAnomalyRepository struct {
	mu        sync.RWMutex
	anomalies []entities.Anomaly
}

func NewMockAnomalyRepository() *MockAnomalyRepository {
	return &MockAnomalyRepository{anomalies: make([]entities.Anomaly, 0)}
}

// AddAnomaly seeds a recorded anomaly
func (m *MockAnomalyRepository) AddAnomaly(a entities.Anomaly) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, a)
}

func (m *MockAnomalyRepository) List(ctx context.Context, limit, offset int) ([]entities.Anomaly, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset > len(m.anomalies) {
		return []entities.Anomaly{}, nil
	}
	end := offset + limit
	if end > len(m.anomalies) {
		end = len(m.anomalies)
	}
	return append([]entities.Anomaly(nil), m.anomalies[offset:end]...), nil
}

func (m *MockAnomalyRepository) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.anomalies)), nil
}

// MockEventSource is a configurable in-memory EventSource
type MockEventSource struct {
	mu sync.Mutex

	Chain    string
	Contract string
	Head     int64
	Events   []types.CanonicalEvent

	// Function hooks for custom behavior
	HeadPositionFunc func(ctx context.Context) (int64, error)
	FetchEventsFunc  func(ctx context.Context, from, to int64) ([]types.CanonicalEvent, error)

	// Call tracking
	FetchCalls [][2]int64
	HeadCalls  int
}

func NewMockEventSource(chainID, contract string) *MockEventSource {
	return &MockEventSource{
		Chain:    chainID,
		Contract: contract,
	}
}

func (m *MockEventSource) ChainID() string         { return m.Chain }
func (m *MockEventSource) ContractAddress() string { return m.Contract }
func (m *MockEventSource) Close()                  {}

func (m *MockEventSource) HeadPosition(ctx context.Context) (int64, error) {
	m.mu.Lock()
	m.HeadCalls++
	m.mu.Unlock()

	if m.HeadPositionFunc != nil {
		return m.HeadPositionFunc(ctx)
	}
	return m.Head, nil
}

// FetchEvents returns seeded events whose position falls inside [from, to]
func (m *MockEventSource) FetchEvents(ctx context.Context, from, to int64) ([]types.CanonicalEvent, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, [2]int64{from, to})
	m.mu.Unlock()

	if m.FetchEventsFunc != nil {
		return m.FetchEventsFunc(ctx, from, to)
	}

	result := make([]types.CanonicalEvent, 0)
	for _, e := range m.Events {
		if e.Position >= from && e.Position <= to {
			result = append(result, e)
		}
	}
	return result, nil
}

// MockNotifier records notification deliveries
type MockNotifier struct {
	mu sync.Mutex

	// Function hooks for custom behavior
	NotifyFunc func(ctx context.Context, orderID, status string) error

	// Call tracking
	Deliveries []MockDelivery
}

// MockDelivery records one Notify call
type MockDelivery struct {
	OrderID string
	Status  string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Deliveries: make([]MockDelivery, 0)}
}

func (m *MockNotifier) Notify(ctx context.Context, orderID, status string) error {
	m.mu.Lock()
	m.Deliveries = append(m.Deliveries, MockDelivery{OrderID: orderID, Status: status})
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, orderID, status)
	}
	return nil
}

// DeliveryCount returns how many times Notify was called
func (m *MockNotifier) DeliveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Deliveries)
}
