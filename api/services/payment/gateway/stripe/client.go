package stripegw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/paymentintent"

	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

const providerName = "stripe"

// SetKey configures the Stripe SDK key once during bootstrap.
func SetKey(key string) { stripe.Key = key }

// client is the Stripe SDK-backed implementation of the gateway.
// A PaymentIntent plays the role of the order.
type client struct{}

// New returns an OrderGateway backed by the official Stripe SDK.
func New() gw.OrderGateway { return client{} }

func (client) Name() string { return providerName }

func (client) CreateOrder(ctx context.Context, req gw.OrderRequest) (gw.Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(req.Amount),
		Currency:     stripe.String(strings.ToLower(req.Currency)),
		Description:  stripe.String(req.Notes.PlanName),
		ReceiptEmail: stripe.String(req.Notes.UserEmail),
	}
	params.Context = ctx
	// the receipt doubles as idempotency key so a replayed request cannot open a second intent
	params.SetIdempotencyKey(req.Receipt)
	params.AddMetadata("planId", req.Notes.PlanID)
	params.AddMetadata("planName", req.Notes.PlanName)
	params.AddMetadata("userEmail", req.Notes.UserEmail)
	params.AddMetadata("receipt", req.Receipt)

	pi, err := paymentintent.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return gw.Order{}, &gw.ProviderError{
				Provider:    providerName,
				StatusCode:  se.HTTPStatusCode,
				Code:        string(se.Code),
				Description: se.Msg,
			}
		}
		return gw.Order{}, fmt.Errorf("%w: %v", gw.ErrTransport, err)
	}
	if pi == nil {
		return gw.Order{}, fmt.Errorf("%w: empty payment intent", gw.ErrTransport)
	}

	return gw.Order{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(req.Currency),
		Receipt:      req.Receipt,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Notes:        req.Notes,
	}, nil
}
