package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	config "github.com/aimploy/payments/api/config"
	paymentdb "github.com/aimploy/payments/api/services/payment/db"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

// Service defines the business operations for the payment domain.
type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (VerifyPaymentResponse, error)
	ActivateSubscription(ctx context.Context, req ActivateRequest) (paymentdb.Subscription, error)
	CancelSubscription(ctx context.Context, userEmail string) (CancelSubscriptionResponse, error)
	GetActiveSubscription(ctx context.Context, userEmail string) (ActiveSubscription, error)
	ListPlans(ctx context.Context) (ListPlansResponse, error)
	HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error
	HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) error
	Ping(ctx context.Context) error
}

// Store is the persistence the service needs; *paymentdb.Store implements it.
type Store interface {
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
	GetPlan(ctx context.Context, id string) (paymentdb.Plan, error)
	ListPlans(ctx context.Context) ([]paymentdb.Plan, error)
	RecordOrder(ctx context.Context, o paymentdb.Order) error
	GetOrder(ctx context.Context, id string) (paymentdb.Order, error)
	ActivateSubscription(ctx context.Context, p paymentdb.ActivateParams) (paymentdb.Subscription, bool, error)
	GetActiveSubscription(ctx context.Context, userID string) (paymentdb.Subscription, error)
	CancelActiveSubscriptions(ctx context.Context, userID string) (int64, error)
	Ping(ctx context.Context) error
}

// Options carries the secrets and knobs the service runs with. Nothing in this
// package reads the process environment.
type Options struct {
	// KeyID is the public provider key returned to the client with each order.
	KeyID string
	// KeySecret verifies browser payment callbacks.
	KeySecret             string
	RazorpayWebhookSecret string
	StripeWebhookSecret   string
	// BillingPeriod defaults to config.BillingPeriod.
	BillingPeriod time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		KeySecret:             cfg.RazorpayKeySecret,
		RazorpayWebhookSecret: cfg.RazorpayWebhookSecret,
		StripeWebhookSecret:   cfg.StripeWebhookSecret,
	}
	if cfg.PaymentProvider == config.ProviderRazorpay {
		opts.KeyID = cfg.RazorpayKeyID
	}
	return opts
}

type serviceImpl struct {
	store Store
	gw    gw.OrderGateway
	opts  Options
}

func NewService(store Store, g gw.OrderGateway, opts Options) Service {
	if opts.BillingPeriod <= 0 {
		opts.BillingPeriod = config.BillingPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return serviceImpl{store: store, gw: g, opts: opts}
}

// newReceipt returns a fresh idempotency token; Razorpay caps receipts at 40 characters.
func newReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateOrder validates the request against the plan catalogue, opens an order
// with the provider and records what the order was priced for. Nothing is sent to the provider when validation fails,
// and a provider rejection is returned as is: the caller retries with a new receipt.
func (s serviceImpl) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.PlanID = strings.TrimSpace(req.PlanID)
	req.PlanName = strings.TrimSpace(req.PlanName)
	req.UserEmail = normalizeEmail(req.UserEmail)
	if err := validateStruct(req); err != nil {
		return Order{}, err
	}

	plan, err := s.store.GetPlan(ctx, req.PlanID)
	if errors.Is(err, paymentdb.ErrNotFound) {
		return Order{}, fmt.Errorf("%w: %s", ErrPlanNotFound, req.PlanID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("%w: error loading plan: %v", ErrDatabase, err)
	}
	if want := ToMinorUnits(plan.Price); want != req.Amount {
		return Order{}, invalidField("amount", fmt.Sprintf("plan_price=%d", want))
	}
	if plan.Currency != "" && !strings.EqualFold(plan.Currency, req.Currency) {
		return Order{}, invalidField("currency", "plan_currency="+strings.ToUpper(plan.Currency))
	}

	receipt := newReceipt()
	notes := gw.OrderNotes{
		PlanID:    req.PlanID,
		PlanName:  req.PlanName,
		UserEmail: req.UserEmail,
	}
	order, err := s.gw.CreateOrder(ctx, gw.OrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		slog.Warn("order creation failed", "provider", s.gw.Name(), "plan_id", req.PlanID, "receipt", receipt, "err", err)
		return Order{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if err := s.store.RecordOrder(ctx, paymentdb.Order{
		ID:        order.ID,
		Provider:  s.gw.Name(),
		PlanID:    plan.ID,
		UserEmail: req.UserEmail,
		Amount:    order.Amount,
		Currency:  req.Currency,
		Receipt:   receipt,
	}); err != nil {
		slog.Error("order created but not recorded", "provider", s.gw.Name(), "order_id", order.ID, "err", err)
		return Order{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	slog.Info("order created", "provider", s.gw.Name(), "order_id", order.ID, "plan_id", req.PlanID, "amount", order.Amount)

	return Order{
		ID:           order.ID,
		Amount:       order.Amount,
		Currency:     order.Currency,
		Receipt:      order.Receipt,
		Status:       order.Status,
		Provider:     s.gw.Name(),
		KeyID:        s.opts.KeyID,
		ClientSecret: order.ClientSecret,
		Notes:        notes,
	}, nil
}

// ListPlans returns the plan catalogue.
func (s serviceImpl) ListPlans(ctx context.Context) (ListPlansResponse, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return ListPlansResponse{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if plans == nil {
		plans = []paymentdb.Plan{}
	}
	return ListPlansResponse{Plans: plans}, nil
}

func (s serviceImpl) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}
