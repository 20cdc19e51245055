package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-service/internal/util"
)

// Client talks to the hosted payment gateway's server-side API. All
// amounts cross this boundary in the gateway's minor currency unit
// (paise for INR).
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	http      *http.Client
}

// NewClient creates a gateway API client authenticated with the
// merchant key pair.
func NewClient(baseURL, keyID, keySecret, currency string) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		currency:  currency,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateTransactionRequest is the server-side create call payload.
type CreateTransactionRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Transaction is a gateway-side pending transaction. ClientKey is what
// the collection surface needs to open the hosted UI.
type Transaction struct {
	GatewayOrderID string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	ClientKey      string `json:"-"`
}

// Payment is the gateway's record of a captured payment.
type Payment struct {
	GatewayPaymentID string `json:"id"`
	GatewayOrderID   string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Method           string `json:"method"`
}

// CreateTransaction creates a pending transaction for the given amount
// in minor units. The server always creates the transaction id; the
// client surface never fabricates its own.
func (c *Client) CreateTransaction(ctx context.Context, amountMinor int64, receipt string, notes map[string]string) (*Transaction, error) {
	reqBody := CreateTransactionRequest{
		Amount:   amountMinor,
		Currency: c.currency,
		Receipt:  receipt,
		Notes:    notes,
	}

	var tx Transaction
	if err := c.post(ctx, "/orders", reqBody, &tx); err != nil {
		return nil, fmt.Errorf("gateway create transaction: %w", err)
	}

	tx.ClientKey = c.keyID
	return &tx, nil
}

// FetchPayment confirms a payment's state with the gateway. Used after
// signature verification to confirm capture before an order is recorded.
func (c *Client) FetchPayment(ctx context.Context, gatewayPaymentID string) (*Payment, error) {
	var payment Payment
	if err := c.get(ctx, "/payments/"+gatewayPaymentID, &payment); err != nil {
		return nil, fmt.Errorf("gateway fetch payment: %w", err)
	}
	return &payment, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("gateway returned %d: %s %s",
			resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
