package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
)

// MockStore counts units of work; it must never be used past Begin in tests that rely on it.
type MockStore struct {
	Begins atomic.Int32
}

func (m *MockStore) Begin() port.UnitOfWork {
	m.Begins.Add(1)
	return nil
}

type MockVerifier struct {
	Event port.PaymentEvent
	Err   error
}

func (m *MockVerifier) Verify(_ []byte, _ string) (port.PaymentEvent, error) {
	return m.Event, m.Err
}

type MockCartStore struct {
	Cart domain.Cart
	Err  error
}

func (m *MockCartStore) GetCart(_ context.Context, _ string) (domain.Cart, error) {
	return m.Cart, m.Err
}

func (m *MockCartStore) SetCart(_ context.Context, cart domain.Cart, _ time.Duration) (domain.Cart, error) {
	return cart, m.Err
}

func (m *MockCartStore) DeleteCart(_ context.Context, _ string) (bool, error) {
	return m.Err == nil, m.Err
}

type MockNotifier struct {
	Sent atomic.Int32
}

func (m *MockNotifier) SendToRecipient(_ context.Context, _ string, _ port.Notification) (bool, error) {
	m.Sent.Add(1)
	return false, nil
}

type IntentCall struct {
	IntentID string
	Amount   domain.Money
}

// MockPaymentIntents hands out pi_mock_<n> ids for new intents and echoes existing ones.
type MockPaymentIntents struct {
	Err error

	mu    sync.Mutex
	calls []IntentCall
}

func (m *MockPaymentIntents) CreateOrUpdate(_ context.Context, intentID string, amount domain.Money) (port.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, IntentCall{IntentID: intentID, Amount: amount})

	if m.Err != nil {
		return port.PaymentIntent{}, m.Err
	}

	id := intentID
	if id == "" {
		id = fmt.Sprintf("pi_mock_%d", len(m.calls))
	}

	return port.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (m *MockPaymentIntents) Calls() []IntentCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]IntentCall(nil), m.calls...)
}
