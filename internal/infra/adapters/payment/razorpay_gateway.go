package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay
// REST API v1 using HTTP basic auth (key id / key secret).
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("razorpay: invalid base url: %w", err)
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (r *RazorpayGateway) Name() string  { return "razorpay" }
func (r *RazorpayGateway) KeyID() string { return r.keyID }

type rzpOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type rzpPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Amount           int64  `json:"amount"`
	ErrorDescription string `json:"error_description"`
}

type rzpError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder calls POST /v1/orders.
func (r *RazorpayGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (order *adapter.Order, err error) {
	defer func() { metrics.IncGatewayCall("create_order", err) }()

	payload := map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}
	var out rzpOrder
	if err := r.do(ctx, http.MethodPost, "/v1/orders", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("razorpay: order response without id")
	}
	return &adapter.Order{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
		Status:   out.Status,
	}, nil
}

// FetchOrderPayments calls GET /v1/orders/{id}/payments.
func (r *RazorpayGateway) FetchOrderPayments(ctx context.Context, orderID string) (pays []adapter.GatewayPayment, err error) {
	defer func() { metrics.IncGatewayCall("fetch_order_payments", err) }()

	var out struct {
		Items []rzpPayment `json:"items"`
	}
	if err := r.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	pays = make([]adapter.GatewayPayment, 0, len(out.Items))
	for _, it := range out.Items {
		pays = append(pays, adapter.GatewayPayment{
			ID:               it.ID,
			OrderID:          it.OrderID,
			Status:           it.Status,
			Method:           it.Method,
			Amount:           it.Amount,
			ErrorDescription: it.ErrorDescription,
		})
	}
	return pays, nil
}

func (r *RazorpayGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e rzpError
		if json.Unmarshal(raw, &e) == nil && e.Error.Description != "" {
			return fmt.Errorf("razorpay http %d: %s: %s", resp.StatusCode, e.Error.Code, e.Error.Description)
		}
		return fmt.Errorf("razorpay http %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
