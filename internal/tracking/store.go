package tracking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound marks lookups for records that do not exist.
var ErrNotFound = errors.New("tracking record not found")

// ErrStoreUnavailable marks transient persistence failures. Callers surface
// these as retryable so the platform's webhook redelivery can try again;
// swallowing them would permanently unattribute revenue.
var ErrStoreUnavailable = errors.New("tracking store unavailable")

// Store persists attribution records. InsertOrderIfAbsent is the idempotency
// gate for webhook redelivery: implementations must guarantee at most one
// record per order id even under concurrent duplicate deliveries.
type Store interface {
	InsertOrderIfAbsent(ctx context.Context, order OrderRecord) (bool, error)
	GetOrder(ctx context.Context, orderID string) (OrderRecord, error)
	SaveCart(ctx context.Context, cart CartRecord) error
	MarkCartConverted(ctx context.Context, cartID, orderID string) error
	RecordConversationOrder(ctx context.Context, conversationID, userID string, revenue float64) error
	ConversationStats(ctx context.Context, conversationID string) (ConversationStats, error)
	Close() error
}

// InMemoryStore keeps records in process memory. Used for development and
// tests; production deployments configure Postgres.
type InMemoryStore struct {
	mu            sync.Mutex
	orders        map[string]OrderRecord
	carts         map[string]CartRecord
	conversations map[string]ConversationStats
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders:        make(map[string]OrderRecord),
		carts:         make(map[string]CartRecord),
		conversations: make(map[string]ConversationStats),
	}
}

func (s *InMemoryStore) InsertOrderIfAbsent(_ context.Context, order OrderRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return false, nil
	}
	if order.ReceivedAt.IsZero() {
		order.ReceivedAt = time.Now().UTC()
	}
	s.orders[order.ID] = order
	return true, nil
}

func (s *InMemoryStore) GetOrder(_ context.Context, orderID string) (OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return OrderRecord{}, ErrNotFound
	}
	return order, nil
}

func (s *InMemoryStore) SaveCart(_ context.Context, cart CartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now().UTC()
	}
	s.carts[cart.ID] = cart
	return nil
}

func (s *InMemoryStore) MarkCartConverted(_ context.Context, cartID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	cart.Converted = true
	cart.OrderID = orderID
	s.carts[cartID] = cart
	return nil
}

func (s *InMemoryStore) RecordConversationOrder(_ context.Context, conversationID, userID string, revenue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.conversations[conversationID]
	stats.ConversationID = conversationID
	if stats.UserID == "" {
		stats.UserID = userID
	}
	stats.OrderCompleted = true
	stats.TotalRevenue += revenue
	stats.Orders++
	s.conversations[conversationID] = stats
	return nil
}

func (s *InMemoryStore) ConversationStats(_ context.Context, conversationID string) (ConversationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.conversations[conversationID]
	if !ok {
		return ConversationStats{}, ErrNotFound
	}
	return stats, nil
}

func (s *InMemoryStore) GetCart(_ context.Context, cartID string) (CartRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[cartID]
	if !ok {
		return CartRecord{}, ErrNotFound
	}
	return cart, nil
}

func (s *InMemoryStore) Close() error { return nil }
