package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/webhook"

	config "github.com/aimploy/payments/api/config"
	paymentdb "github.com/aimploy/payments/api/services/payment/db"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

const (
	razorpayEventPaymentCaptured = "payment.captured"
	razorpayEventOrderPaid       = "order.paid"
	stripeEventIntentSucceeded   = "payment_intent.succeeded"
)

type razorpayEntity struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Notes   json.RawMessage `json:"notes"`
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// decodeNotes reads Razorpay notes, which arrive as [] when empty.
func decodeNotes(raw json.RawMessage) gw.OrderNotes {
	var notes gw.OrderNotes
	if len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '{' {
		return notes
	}
	_ = json.Unmarshal(raw, &notes)
	return notes
}

// HandleRazorpayWebhook activates the plan named in the order notes of a signed
// payment.captured or order.paid event. It shares the idempotency key with
// VerifyPayment, so whichever of the two arrives second changes nothing.
func (s serviceImpl) HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error {
	if s.opts.RazorpayWebhookSecret == "" {
		return fmt.Errorf("%w: razorpay webhook secret", ErrNotConfigured)
	}
	if !VerifyWebhookSignature(body, signature, s.opts.RazorpayWebhookSecret) {
		return ErrSignature
	}

	var evt razorpayWebhook
	if err := json.Unmarshal(body, &evt); err != nil {
		return invalidField("body", "json")
	}
	if evt.Event != razorpayEventPaymentCaptured && evt.Event != razorpayEventOrderPaid {
		slog.Debug("ignoring razorpay event", "event", evt.Event)
		return nil
	}
	if evt.Payload.Payment == nil {
		return invalidField("payload.payment", "required")
	}

	payment := evt.Payload.Payment.Entity
	notes := decodeNotes(payment.Notes)
	if evt.Payload.Order != nil {
		if orderNotes := decodeNotes(evt.Payload.Order.Entity.Notes); orderNotes.PlanID != "" {
			notes = orderNotes
		}
	}
	if payment.ID == "" || payment.OrderID == "" {
		return invalidField("payload.payment.entity", "order_id_and_id_required")
	}
	if notes.PlanID == "" || notes.UserEmail == "" {
		return invalidField("notes", "planId_and_userEmail_required")
	}

	_, err := s.ActivateSubscription(ctx, ActivateRequest{
		UserEmail: notes.UserEmail,
		PlanID:    notes.PlanID,
		Payment: &paymentdb.PaymentRef{
			Provider:  config.ProviderRazorpay,
			OrderID:   payment.OrderID,
			PaymentID: payment.ID,
		},
	})
	return err
}

// HandleStripeWebhook activates the plan in the metadata of a signed
// payment_intent.succeeded event.
func (s serviceImpl) HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	if s.opts.StripeWebhookSecret == "" {
		return fmt.Errorf("%w: stripe webhook secret", ErrNotConfigured)
	}
	event, err := webhook.ConstructEvent(body, signatureHeader, s.opts.StripeWebhookSecret)
	if err != nil {
		slog.Warn("stripe webhook rejected", "err", err)
		return ErrSignature
	}
	if event.Type != stripeEventIntentSucceeded {
		slog.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
	if event.Data == nil {
		return invalidField("data", "required")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return invalidField("data.object", "payment_intent")
	}
	planID, email := pi.Metadata["planId"], pi.Metadata["userEmail"]
	if pi.ID == "" || planID == "" || email == "" {
		return invalidField("metadata", "planId_and_userEmail_required")
	}

	_, err = s.ActivateSubscription(ctx, ActivateRequest{
		UserEmail: email,
		PlanID:    planID,
		Payment: &paymentdb.PaymentRef{
			Provider:  config.ProviderStripe,
			OrderID:   pi.ID,
			PaymentID: pi.ID,
		},
	})
	return err
}
