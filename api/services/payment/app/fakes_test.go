package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	paymentdb "github.com/aimploy/payments/api/services/payment/db"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []gw.OrderRequest
	err   error
}

func (f *fakeGateway) Name() string { return "razorpay" }

func (f *fakeGateway) CreateOrder(ctx context.Context, req gw.OrderRequest) (gw.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return gw.Order{}, f.err
	}
	return gw.Order{
		ID:       fmt.Sprintf("order_%d", len(f.calls)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    req.Notes,
	}, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memStore mirrors paymentdb.Store semantics in memory.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]string // email -> user id
	plans    map[string]paymentdb.Plan
	orders   map[string]paymentdb.Order
	subs     []paymentdb.Subscription
	events   map[string]string // order|payment -> subscription id
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]string{"hr@acme.io": "user-1", "a@b.com": "user-2"},
		plans: map[string]paymentdb.Plan{
			"plan_basic": {ID: "plan_basic", Name: "Basic", JobLimit: 5, Price: decimal.RequireFromString("9.99"), Currency: "INR"},
			"plan_pro":   {ID: "plan_pro", Name: "Pro", JobLimit: 25, Price: decimal.RequireFromString("29.99"), Currency: "INR", Features: []string{"25 active jobs"}},
		},
		orders: map[string]paymentdb.Order{},
		events: map[string]string{},
	}
}

// placeOrder records an order as CreateOrder would have.
func (m *memStore) placeOrder(id, planID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = paymentdb.Order{ID: id, Provider: "razorpay", PlanID: planID, UserEmail: strings.ToLower(email), Currency: "INR"}
}

func (m *memStore) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.profiles[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", paymentdb.ErrNotFound
	}
	return id, nil
}

func (m *memStore) GetPlan(ctx context.Context, id string) (paymentdb.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return paymentdb.Plan{}, paymentdb.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListPlans(ctx context.Context) ([]paymentdb.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plans := make([]paymentdb.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		plans = append(plans, p)
	}
	return plans, nil
}

func (m *memStore) RecordOrder(ctx context.Context, o paymentdb.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s already recorded", o.ID)
	}
	o.UserEmail = strings.ToLower(strings.TrimSpace(o.UserEmail))
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (paymentdb.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return paymentdb.Order{}, paymentdb.ErrNotFound
	}
	return o, nil
}

func (m *memStore) ActivateSubscription(ctx context.Context, p paymentdb.ActivateParams) (paymentdb.Subscription, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := false
	for _, id := range m.profiles {
		if id == p.UserID {
			known = true
		}
	}
	if !known {
		return paymentdb.Subscription{}, false, paymentdb.ErrNotFound
	}

	var key string
	if p.Payment != nil {
		key = p.Payment.OrderID + "|" + p.Payment.PaymentID
		if subID, ok := m.events[key]; ok {
			for _, s := range m.subs {
				if s.ID == subID {
					return s, true, nil
				}
			}
		}
	}

	for i := range m.subs {
		if m.subs[i].UserID == p.UserID && m.subs[i].Status == paymentdb.StatusActive {
			m.subs[i].Status = paymentdb.StatusCancelled
			m.subs[i].UpdatedAt = p.PeriodStart
		}
	}
	m.nextID++
	sub := paymentdb.Subscription{
		ID:                 fmt.Sprintf("sub-%d", m.nextID),
		UserID:             p.UserID,
		PlanID:             p.PlanID,
		Status:             paymentdb.StatusActive,
		CurrentPeriodStart: p.PeriodStart,
		CurrentPeriodEnd:   p.PeriodEnd,
		CreatedAt:          p.PeriodStart,
		UpdatedAt:          p.PeriodStart,
	}
	m.subs = append(m.subs, sub)
	if key != "" {
		m.events[key] = sub.ID
	}
	return sub, false, nil
}

func (m *memStore) GetActiveSubscription(ctx context.Context, userID string) (paymentdb.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == paymentdb.StatusActive {
			return s, nil
		}
	}
	return paymentdb.Subscription{}, paymentdb.ErrNotFound
}

func (m *memStore) CancelActiveSubscriptions(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.subs {
		if m.subs[i].UserID == userID && m.subs[i].Status == paymentdb.StatusActive {
			m.subs[i].Status = paymentdb.StatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) subscriptionsOf(userID string) (active, cancelled int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID != userID {
			continue
		}
		switch s.Status {
		case paymentdb.StatusActive:
			active++
		case paymentdb.StatusCancelled:
			cancelled++
		}
	}
	return active, cancelled
}

func (m *memStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(store Store, g gw.OrderGateway) Service {
	return NewService(store, g, Options{
		KeyID:                 "rzp_test_key",
		KeySecret:             "secret",
		RazorpayWebhookSecret: "whsec_razorpay",
		StripeWebhookSecret:   "whsec_stripe",
		Now:                   func() time.Time { return fixedNow },
	})
}
