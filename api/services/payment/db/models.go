package db

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is one paid period of a plan for a user. Rows are never deleted;
// the only transition is active -> cancelled.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	PlanID             string             `json:"planId"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Plan is read-only reference data. Price is in major currency units.
type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	JobLimit int             `json:"jobLimit"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Features []string        `json:"features"`
}

// Order is a provider order as priced at creation. Amount is in minor units and
// UserEmail is stored lower-cased.
type Order struct {
	ID        string
	Provider  string
	PlanID    string
	UserEmail string
	Amount    int64
	Currency  string
	Receipt   string
	CreatedAt time.Time
}

// PaymentRef identifies the provider payment that paid for an activation.
type PaymentRef struct {
	Provider  string
	OrderID   string
	PaymentID string
}

// ActivateParams describes one supersede-and-insert.
type ActivateParams struct {
	UserID      string
	PlanID      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	// Payment, when set, makes the activation idempotent on (OrderID, PaymentID).
	Payment *PaymentRef
}
