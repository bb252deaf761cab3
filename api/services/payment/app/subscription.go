package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	config "github.com/aimploy/payments/api/config"
	paymentdb "github.com/aimploy/payments/api/services/payment/db"
)

// VerifyPayment checks the widget's callback signature and, only when it
// matches and the callback names the plan and payer its order was created for,
// activates the purchased plan. A mismatch never touches storage.
func (s serviceImpl) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (VerifyPaymentResponse, error) {
	req.RazorpayOrderID = strings.TrimSpace(req.RazorpayOrderID)
	req.RazorpayPaymentID = strings.TrimSpace(req.RazorpayPaymentID)
	req.RazorpaySignature = strings.TrimSpace(req.RazorpaySignature)
	req.PlanID = strings.TrimSpace(req.PlanID)
	req.UserEmail = normalizeEmail(req.UserEmail)
	if err := validateStruct(req); err != nil {
		return VerifyPaymentResponse{}, err
	}

	if s.opts.KeySecret == "" {
		slog.Error("payment callback rejected: provider key secret is not configured", "order_id", req.RazorpayOrderID)
	}
	if !VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, s.opts.KeySecret) {
		slog.Warn("payment signature mismatch", "order_id", req.RazorpayOrderID, "payment_id", req.RazorpayPaymentID)
		return VerifyPaymentResponse{}, ErrSignature
	}

	activate := ActivateRequest{
		UserEmail: req.UserEmail,
		PlanID:    req.PlanID,
		Payment: &paymentdb.PaymentRef{
			Provider:  config.ProviderRazorpay,
			OrderID:   req.RazorpayOrderID,
			PaymentID: req.RazorpayPaymentID,
		},
	}
	if err := s.matchOrder(ctx, activate); err != nil {
		return VerifyPaymentResponse{}, err
	}

	sub, err := s.ActivateSubscription(ctx, activate)
	if err != nil {
		return VerifyPaymentResponse{}, err
	}

	return VerifyPaymentResponse{
		Success:          true,
		UserID:           sub.UserID,
		PlanID:           sub.PlanID,
		SubscriptionID:   sub.ID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

// matchOrder loads the order a verified callback pays for. The signature covers
// only the order and payment ids, so the plan and payer come from the order.
func (s serviceImpl) matchOrder(ctx context.Context, req ActivateRequest) error {
	order, err := s.store.GetOrder(ctx, req.Payment.OrderID)
	if errors.Is(err, paymentdb.ErrNotFound) {
		slog.Warn("payment callback for unknown order", "order_id", req.Payment.OrderID, "payment_id", req.Payment.PaymentID)
		return invalidField("razorpay_order_id", "unknown_order")
	}
	if err != nil {
		return s.activationFailure(req, fmt.Errorf("%w: error loading order: %v", ErrActivation, err))
	}

	var fields []FieldError
	if order.PlanID != req.PlanID {
		fields = append(fields, FieldError{Field: "planId", Rule: "order_mismatch"})
	}
	if !strings.EqualFold(order.UserEmail, req.UserEmail) {
		fields = append(fields, FieldError{Field: "userEmail", Rule: "order_mismatch"})
	}
	if len(fields) > 0 {
		slog.Warn("payment callback does not match its order",
			"order_id", order.ID, "order_plan_id", order.PlanID, "plan_id", req.PlanID, "payment_id", req.Payment.PaymentID)
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ActivateSubscription supersedes the user's active subscription with a new one
// for req.PlanID running one billing period from now. Callers must have verified
// the payment first.
func (s serviceImpl) ActivateSubscription(ctx context.Context, req ActivateRequest) (paymentdb.Subscription, error) {
	email := normalizeEmail(req.UserEmail)
	planID := strings.TrimSpace(req.PlanID)
	if email == "" {
		return paymentdb.Subscription{}, invalidField("userEmail", "required")
	}
	if planID == "" {
		return paymentdb.Subscription{}, invalidField("planId", "required")
	}

	userID, err := s.resolveUser(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			err = fmt.Errorf("%w: %v", ErrActivation, err)
		}
		return paymentdb.Subscription{}, s.activationFailure(req, err)
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if errors.Is(err, paymentdb.ErrNotFound) {
		return paymentdb.Subscription{}, s.activationFailure(req, fmt.Errorf("%w: %s", ErrPlanNotFound, planID))
	}
	if err != nil {
		return paymentdb.Subscription{}, s.activationFailure(req, fmt.Errorf("%w: error loading plan: %v", ErrActivation, err))
	}

	start := s.opts.Now().UTC()
	sub, replayed, err := s.store.ActivateSubscription(ctx, paymentdb.ActivateParams{
		UserID:      userID,
		PlanID:      plan.ID,
		PeriodStart: start,
		PeriodEnd:   start.Add(s.opts.BillingPeriod),
		Payment:     req.Payment,
	})
	if errors.Is(err, paymentdb.ErrNotFound) {
		return paymentdb.Subscription{}, s.activationFailure(req, fmt.Errorf("%w: %s", ErrUserNotFound, email))
	}
	if err != nil {
		return paymentdb.Subscription{}, s.activationFailure(req, fmt.Errorf("%w: %v", ErrActivation, err))
	}

	if replayed {
		if sub.UserID != userID {
			return paymentdb.Subscription{}, invalidField("payment", "already_applied_to_another_account")
		}
		slog.Info("duplicate payment ignored", "user_id", userID, "subscription_id", sub.ID, "order_id", req.Payment.OrderID)
		return sub, nil
	}

	slog.Info("subscription activated", "user_id", userID, "plan_id", plan.ID, "subscription_id", sub.ID, "period_end", sub.CurrentPeriodEnd)
	return sub, nil
}

// activationFailure logs failures of a paid activation loudly enough for
// support to reconcile, and passes err through.
func (s serviceImpl) activationFailure(req ActivateRequest, err error) error {
	if req.Payment != nil {
		slog.Error("verified payment could not be applied",
			"provider", req.Payment.Provider,
			"order_id", req.Payment.OrderID,
			"payment_id", req.Payment.PaymentID,
			"plan_id", req.PlanID,
			"err", err)
	}
	return err
}

func (s serviceImpl) resolveUser(ctx context.Context, email string) (string, error) {
	userID, err := s.store.FindUserIDByEmail(ctx, email)
	if errors.Is(err, paymentdb.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return "", fmt.Errorf("%w: error resolving user: %v", ErrDatabase, err)
	}
	return userID, nil
}

// CancelSubscription cancels the user's active subscription, if any.
func (s serviceImpl) CancelSubscription(ctx context.Context, userEmail string) (CancelSubscriptionResponse, error) {
	req := UserRequest{UserEmail: normalizeEmail(userEmail)}
	if err := validateStruct(req); err != nil {
		return CancelSubscriptionResponse{}, err
	}
	userID, err := s.resolveUser(ctx, req.UserEmail)
	if err != nil {
		return CancelSubscriptionResponse{}, err
	}
	n, err := s.store.CancelActiveSubscriptions(ctx, userID)
	if err != nil {
		return CancelSubscriptionResponse{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	slog.Info("subscription cancelled", "user_id", userID, "rows", n)
	return CancelSubscriptionResponse{Success: true, Cancelled: n}, nil
}

// GetActiveSubscription returns the user's active subscription and its plan.
func (s serviceImpl) GetActiveSubscription(ctx context.Context, userEmail string) (ActiveSubscription, error) {
	req := UserRequest{UserEmail: normalizeEmail(userEmail)}
	if err := validateStruct(req); err != nil {
		return ActiveSubscription{}, err
	}
	userID, err := s.resolveUser(ctx, req.UserEmail)
	if err != nil {
		return ActiveSubscription{}, err
	}

	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if errors.Is(err, paymentdb.ErrNotFound) {
		return ActiveSubscription{}, ErrNoActiveSubscription
	}
	if err != nil {
		return ActiveSubscription{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return ActiveSubscription{}, fmt.Errorf("%w: error loading plan %s: %v", ErrDatabase, sub.PlanID, err)
	}

	return ActiveSubscription{
		Subscription: sub,
		Plan:         plan,
		Expired:      !s.opts.Now().Before(sub.CurrentPeriodEnd),
	}, nil
}
