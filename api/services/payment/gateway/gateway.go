package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransport indicates the provider could not be reached or answered with
// something that is not a provider response.
var ErrTransport = errors.New("payment provider unreachable")

// OrderGateway abstracts the payment provider's order creation API.
// Methods return values (not pointers) to keep the app layer free of
// provider SDK types.
type OrderGateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
}

// OrderNotes is the metadata attached to an order and echoed back by the
// provider on webhooks.
type OrderNotes struct {
	PlanID    string `json:"planId"`
	PlanName  string `json:"planName"`
	UserEmail string `json:"userEmail"`
}

// OrderRequest is one order creation call. Amount is in the currency's minor unit.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    OrderNotes
}

// Order is the provider's handle for an intended charge.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	// ClientSecret is only set by providers whose widget needs it (Stripe).
	ClientSecret string
	Notes        OrderNotes
}

// ProviderError is a rejection returned by the provider's API.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected request (%d %s): %s", e.Provider, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("%s rejected request (%d): %s", e.Provider, e.StatusCode, e.Description)
}

// ClientFault reports whether the provider blamed the request rather than itself.
func (e *ProviderError) ClientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
