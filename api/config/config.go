package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	// Razorpay key id is safe to hand to the browser; the secret never is.
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	StripeSecretKey       string
	StripeWebhookSecret   string
	// PaymentProvider selects the order gateway: "razorpay" or "stripe".
	PaymentProvider string
	AllowedOrigin   string
	LogLevel        string
	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string
	// Server ports
	HTTPPort string
	GRPCPort string

	OrderTimeout   time.Duration
	DBMaxOpenConns int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{}

	// Try to load .env file from current directory and parent directories
	currentDir, _ := os.Getwd()
	for currentDir != "/" && currentDir != "." {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			err = godotenv.Load(envPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load .env file: %v", err)
			}
			break
		}
		currentDir = filepath.Dir(currentDir)
	}

	stringVars := []struct {
		name     string
		envVar   string
		display  string
		required bool
	}{
		{"DatabaseURL", "DATABASE_URL", "Database URL", true},
		{"RazorpayKeyID", "RAZORPAY_KEY_ID", "Razorpay Key ID", false},
		{"RazorpayKeySecret", "RAZORPAY_KEY_SECRET", "Razorpay Key Secret", false},
		{"RazorpayWebhookSecret", "RAZORPAY_WEBHOOK_SECRET", "Razorpay Webhook Secret", false},
		{"RazorpayBaseURL", "RAZORPAY_BASE_URL", "Razorpay Base URL", false},
		{"StripeSecretKey", "STRIPE_SECRET_KEY", "Stripe Secret Key", false},
		{"StripeWebhookSecret", "STRIPE_WEBHOOK_SECRET", "Stripe Webhook Secret", false},
		{"PaymentProvider", "PAYMENT_PROVIDER", "Payment Provider", false},
		{"AllowedOrigin", "ALLOWED_ORIGIN", "Allowed CORS Origin", false},
		{"LogLevel", "LOG_LEVEL", "Log Level", false},
		// Optional integration base URL for remote tests
		{"IntegrationBaseURL", "INTEGRATION_BASE_URL", "Integration Base URL", false},
		// Optional server ports
		{"HTTPPort", "PORT", "HTTP Port", false},
		{"GRPCPort", "GRPC_PORT", "gRPC Port", false},
	}

	for _, v := range stringVars {
		value := strings.TrimSpace(os.Getenv(v.envVar))
		if v.required && value == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", v.display)
		}
		configField := reflect.ValueOf(config).Elem().FieldByName(v.name)
		configField.SetString(value)
	}

	var err error
	if raw := os.Getenv("ORDER_TIMEOUT"); raw != "" {
		if config.OrderTimeout, err = cast.ToDurationE(raw); err != nil {
			return nil, fmt.Errorf("invalid ORDER_TIMEOUT %q: %v", raw, err)
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if config.DBMaxOpenConns, err = cast.ToIntE(raw); err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %v", raw, err)
		}
	}

	// Defaults
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}
	if config.GRPCPort == "" {
		config.GRPCPort = "50051"
	}
	if config.RazorpayBaseURL == "" {
		config.RazorpayBaseURL = DefaultRazorpayBaseURL
	}
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "*"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OrderTimeout <= 0 {
		config.OrderTimeout = DefaultOrderTimeout
	}
	if config.DBMaxOpenConns <= 0 {
		config.DBMaxOpenConns = DefaultDBMaxOpenConns
	}

	config.PaymentProvider = strings.ToLower(config.PaymentProvider)
	if config.PaymentProvider == "" {
		config.PaymentProvider = ProviderRazorpay
	}
	switch config.PaymentProvider {
	case ProviderRazorpay:
		if config.RazorpayKeyID == "" {
			return nil, fmt.Errorf("missing required environment variable: Razorpay Key ID (PAYMENT_PROVIDER=razorpay)")
		}
		if config.RazorpayKeySecret == "" {
			return nil, fmt.Errorf("missing required environment variable: Razorpay Key Secret (PAYMENT_PROVIDER=razorpay)")
		}
	case ProviderStripe:
		if config.StripeSecretKey == "" {
			return nil, fmt.Errorf("missing required environment variable: Stripe Secret Key (PAYMENT_PROVIDER=stripe)")
		}
	default:
		return nil, fmt.Errorf("unsupported PAYMENT_PROVIDER %q", config.PaymentProvider)
	}

	return config, nil
}
