package app

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	paymentdb "github.com/aimploy/payments/api/services/payment/db"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

// CreateOrderRequest asks for a provider order. Amount is in minor units (paise, cents).
// Every accepted currency has two decimal places in its minor unit.
type CreateOrderRequest struct {
	Amount    int64  `json:"amount" validate:"gt=0"`
	Currency  string `json:"currency" validate:"required,oneof=INR USD EUR GBP SGD AED"`
	PlanID    string `json:"planId" validate:"required,max=64"`
	PlanName  string `json:"planName" validate:"required,max=128"`
	UserEmail string `json:"userEmail" validate:"required,email"`
}

// Order is what the client needs to open the provider's payment widget.
type Order struct {
	ID           string        `json:"id"`
	Amount       int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Receipt      string        `json:"receipt"`
	Status       string        `json:"status,omitempty"`
	Provider     string        `json:"provider"`
	KeyID        string        `json:"keyId,omitempty"`
	ClientSecret string        `json:"clientSecret,omitempty"`
	Notes        gw.OrderNotes `json:"notes"`
}

// VerifyPaymentRequest is the callback the payment widget hands to the browser,
// forwarded together with what was bought and by whom.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	PlanID            string `json:"planId" validate:"required"`
	UserEmail         string `json:"userEmail" validate:"required,email"`
}

type VerifyPaymentResponse struct {
	Success          bool      `json:"success"`
	UserID           string    `json:"userId"`
	PlanID           string    `json:"planId"`
	SubscriptionID   string    `json:"subscriptionId"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

// ActivateRequest grants a plan to a user. Payment is nil for activations not
// tied to a provider payment.
type ActivateRequest struct {
	UserEmail string
	PlanID    string
	Payment   *paymentdb.PaymentRef
}

// UserRequest identifies a user by email.
type UserRequest struct {
	UserEmail string `json:"userEmail" validate:"required,email"`
}

type CancelSubscriptionResponse struct {
	Success   bool  `json:"success"`
	Cancelled int64 `json:"cancelled"`
}

// ActiveSubscription is the user's current entitlement. Expired is set when
// the period has ended but no newer payment has superseded the row.
type ActiveSubscription struct {
	Subscription paymentdb.Subscription `json:"subscription"`
	Plan         paymentdb.Plan         `json:"plan"`
	Expired      bool                   `json:"expired"`
}

type ListPlansResponse struct {
	Plans []paymentdb.Plan `json:"plans"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Fields: []FieldError{{Field: "request", Rule: err.Error()}}}
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields = append(fields, FieldError{Field: fe.Field(), Rule: rule})
	}
	return &ValidationError{Fields: fields}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
