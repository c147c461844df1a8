package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

// MockPendingStore
type MockPendingStore struct {
	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent

	PutFn           func(key string, intent *domain.PaymentIntent)
	RekeyFn         func(oldKey, newKey string) bool
	TakeIfPresentFn func(key string) (*domain.PaymentIntent, bool)
	SweepExpiredFn  func(maxAge time.Duration) int
}

func NewMockPendingStore() *MockPendingStore {
	return &MockPendingStore{
		intents: make(map[string]*domain.PaymentIntent),
	}
}

func (m *MockPendingStore) Put(key string, intent *domain.PaymentIntent) {
	if m.PutFn != nil {
		m.PutFn(key, intent)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[key] = intent
}

func (m *MockPendingStore) Rekey(oldKey, newKey string) bool {
	if m.RekeyFn != nil {
		return m.RekeyFn(oldKey, newKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[oldKey]
	if !ok {
		return false
	}
	delete(m.intents, oldKey)
	intent.CorrelationKey = newKey
	intent.State = domain.StateAwaitingCallback
	m.intents[newKey] = intent
	return true
}

func (m *MockPendingStore) TakeIfPresent(key string) (*domain.PaymentIntent, bool) {
	if m.TakeIfPresentFn != nil {
		return m.TakeIfPresentFn(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[key]
	if !ok {
		return nil, false
	}
	delete(m.intents, key)
	return intent, true
}

func (m *MockPendingStore) SweepExpired(maxAge time.Duration) int {
	if m.SweepExpiredFn != nil {
		return m.SweepExpiredFn(maxAge)
	}
	return 0
}

// Peek returns the stored intent without removing it, for assertions.
func (m *MockPendingStore) Peek(key string) (*domain.PaymentIntent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[key]
	return intent, ok
}

func (m *MockPendingStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

// MockGatewayClient
type MockGatewayClient struct {
	RequestPushPaymentFn func(ctx context.Context, subject domain.Subject, amount decimal.Decimal) (*application.GatewayTicket, error)
}

func (m *MockGatewayClient) RequestPushPayment(ctx context.Context, subject domain.Subject, amount decimal.Decimal) (*application.GatewayTicket, error) {
	if m.RequestPushPaymentFn != nil {
		return m.RequestPushPaymentFn(ctx, subject, amount)
	}
	return &application.GatewayTicket{
		TransactionID: "ws_CO_default",
		RawResponse:   `{"CheckoutRequestID":"ws_CO_default","ResponseCode":"0"}`,
	}, nil
}

// MockDirectory
type MockDirectory struct {
	mu sync.Mutex

	FindByEmailFn     func(ctx context.Context, email string) (*application.Subscriber, error)
	RemoveFromGroupFn func(ctx context.Context, subscriberID, groupID string) error
	UpsertFn          func(ctx context.Context, record application.SubscriberRecord) error

	// Calls records invocation order across all three methods for
	// remove-then-add assertions.
	Calls   []string
	Removed [][2]string
	Upserts []application.SubscriberRecord
}

func (m *MockDirectory) FindByEmail(ctx context.Context, email string) (*application.Subscriber, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, "find:"+email)
	m.mu.Unlock()
	if m.FindByEmailFn != nil {
		return m.FindByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *MockDirectory) RemoveFromGroup(ctx context.Context, subscriberID, groupID string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, "remove:"+subscriberID+":"+groupID)
	m.Removed = append(m.Removed, [2]string{subscriberID, groupID})
	m.mu.Unlock()
	if m.RemoveFromGroupFn != nil {
		return m.RemoveFromGroupFn(ctx, subscriberID, groupID)
	}
	return nil
}

func (m *MockDirectory) Upsert(ctx context.Context, record application.SubscriberRecord) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, "upsert:"+record.Email)
	m.Upserts = append(m.Upserts, record)
	m.mu.Unlock()
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, record)
	}
	return nil
}

// MockAlerter records alerts synchronously so tests can assert on them.
type MockAlerter struct {
	mu       sync.Mutex
	Messages []string
}

func (m *MockAlerter) Notify(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
}

func (m *MockAlerter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
