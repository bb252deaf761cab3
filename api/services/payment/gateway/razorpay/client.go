package razorpaygw

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

const providerName = "razorpay"

type orderBody struct {
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Receipt  string        `json:"receipt"`
	Notes    gw.OrderNotes `json:"notes"`
}

type orderResponse struct {
	ID       string        `json:"id"`
	Entity   string        `json:"entity"`
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Receipt  string        `json:"receipt"`
	Status   string        `json:"status"`
	Notes    gw.OrderNotes `json:"notes"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
	} `json:"error"`
}

// client talks to the Razorpay Orders API.
type client struct {
	http *resty.Client
}

// New returns an OrderGateway backed by the Razorpay REST API.
// Requests carry basic auth built from the key pair and are bounded by timeout.
// Only a transport failure without any response is retried, once; a provider
// answer is never retried.
func New(baseURL, keyID, keySecret string, timeout time.Duration) gw.OrderGateway {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(keyID, keySecret).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil && (resp == nil || resp.RawResponse == nil)
		})
	return client{http: hc}
}

func (client) Name() string { return providerName }

func (c client) CreateOrder(ctx context.Context, req gw.OrderRequest) (gw.Order, error) {
	var out orderResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderBody{
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Notes:    req.Notes,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/orders")
	if err != nil {
		return gw.Order{}, fmt.Errorf("%w: %v", gw.ErrTransport, err)
	}
	if resp.IsError() {
		desc := apiErr.Error.Description
		if desc == "" {
			desc = strings.TrimSpace(string(resp.Body()))
		}
		if desc == "" {
			desc = http.StatusText(resp.StatusCode())
		}
		slog.Warn("razorpay order rejected", "status", resp.StatusCode(), "code", apiErr.Error.Code, "receipt", req.Receipt)
		return gw.Order{}, &gw.ProviderError{
			Provider:    providerName,
			StatusCode:  resp.StatusCode(),
			Code:        apiErr.Error.Code,
			Description: desc,
		}
	}
	if out.ID == "" {
		return gw.Order{}, fmt.Errorf("%w: order response without id (status %d)", gw.ErrTransport, resp.StatusCode())
	}

	return gw.Order{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
		Status:   out.Status,
		Notes:    out.Notes,
	}, nil
}
