package config

import (
	"log"
	"strings"
	"time"
)

const (
	// ProdDbId is the identifier for the production database
	ProdDbId = "aimploy-prod"

	// BillingPeriod is the fixed validity window of a paid subscription.
	// It is not calendar-month aware.
	BillingPeriod = 30 * 24 * time.Hour

	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"

	DefaultRazorpayBaseURL = "https://api.razorpay.com"
	DefaultOrderTimeout    = 10 * time.Second
	DefaultDBMaxOpenConns  = 5
)

// CheckNotProdDB aborts immediately if the configured database URL contains ProdDbId.
// This should be called at the start of any test that interacts with the database.
func CheckNotProdDB() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DatabaseURL is not configured")
	}
	if strings.Contains(cfg.DatabaseURL, ProdDbId) {
		log.Fatalf("Tests aborted: DatabaseURL contains production identifier %s", ProdDbId)
	}
}
