package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/aimploy/payments/api/config"
	"github.com/aimploy/payments/api/database"
	paymentapp "github.com/aimploy/payments/api/services/payment/app"
	paymentdb "github.com/aimploy/payments/api/services/payment/db"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
	razorpaygw "github.com/aimploy/payments/api/services/payment/gateway/razorpay"
	stripegw "github.com/aimploy/payments/api/services/payment/gateway/stripe"
)

var paymentService paymentapp.Service
var initOnce sync.Once
var initErr error

// Init initializes config, database, and the payment provider client, and wires services.
func Init() error {
	// If a service has already been injected (e.g., tests), do not override or init heavy deps.
	if paymentService != nil {
		return nil
	}
	var err error
	if config.AppConfig == nil {
		config.AppConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := config.AppConfig

	if err := database.Initialize(context.Background(), cfg.DatabaseURL, cfg.DBMaxOpenConns); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	gateway, err := NewGateway(cfg)
	if err != nil {
		return err
	}

	paymentService = paymentapp.NewService(paymentdb.New(database.GetDB()), gateway, paymentapp.OptionsFromConfig(cfg))
	return nil
}

// NewGateway returns the order gateway for cfg.PaymentProvider.
func NewGateway(cfg *config.Config) (gw.OrderGateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderRazorpay:
		return razorpaygw.New(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.OrderTimeout), nil
	case config.ProviderStripe:
		stripegw.SetKey(cfg.StripeSecretKey)
		return stripegw.New(), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

func GetPaymentService() paymentapp.Service { return paymentService }

// SetPaymentService allows tests to inject a stub implementation.
func SetPaymentService(s paymentapp.Service) { paymentService = s }

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
