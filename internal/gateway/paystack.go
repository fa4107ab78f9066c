/**
 * @description
 * Paystack adapter. Covers the card/checkout funding rail: transaction
 * initialization, synchronous verification, and `charge.success` webhooks.
 *
 * @notes
 * - Paystack already denominates NGN amounts in kobo, so no unit conversion is
 *   needed on this rail.
 * - Webhook signatures arrive in the `x-paystack-signature` header as a hex
 *   HMAC-SHA512 over the raw request body.
 */

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const paystackName = "paystack"

// PaystackClient talks to the Paystack REST API.
type PaystackClient struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewPaystackClient creates a Paystack adapter with a bounded request timeout.
func NewPaystackClient(baseURL, secretKey string, timeout time.Duration) *PaystackClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaystackClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *PaystackClient) Name() string { return paystackName }

type paystackInitRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"` // kobo
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
	Currency    string `json:"currency"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status  string  `json:"status"`
		Amount  int64   `json:"amount"` // kobo
		PaidAt  *string `json:"paid_at"`
		Channel string  `json:"channel"`
	} `json:"data"`
}

type paystackWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // kobo
		Status    string `json:"status"`
		Channel   string `json:"channel"`
		ID        int64  `json:"id"`
	} `json:"data"`
}

// Initialize starts a checkout transaction and returns the hosted payment URL.
func (c *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	payload := paystackInitRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Currency:    "NGN",
	}

	var resp paystackInitResponse
	if err := c.doRequest(ctx, http.MethodPost, "/transaction/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack initialize rejected: %s", resp.Message)
	}

	return &InitializeResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		GatewayReference: resp.Data.Reference,
	}, nil
}

// Verify queries the current status of a transaction by its reference.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var resp paystackVerifyResponse
	path := "/transaction/verify/" + reference
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack verify rejected: %s", resp.Message)
	}

	result := &VerifyResult{
		Status:  normalizePaystackStatus(resp.Data.Status),
		Amount:  resp.Data.Amount,
		Channel: resp.Data.Channel,
		Raw: map[string]any{
			"status":  resp.Data.Status,
			"amount":  resp.Data.Amount,
			"channel": resp.Data.Channel,
		},
	}
	if resp.Data.PaidAt != nil {
		if paidAt, err := time.Parse(time.RFC3339, *resp.Data.PaidAt); err == nil {
			result.PaidAt = &paidAt
		}
	}
	return result, nil
}

// SignatureHeader returns the header Paystack signs its webhooks with.
func (c *PaystackClient) SignatureHeader() string { return "x-paystack-signature" }

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of the
// raw body keyed with the account secret, compared in constant time.
func (c *PaystackClient) VerifySignature(signatureHeader string, payload []byte) bool {
	if c.SecretKey == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.SecretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signatureHeader))), []byte(expected))
}

// ParseWebhookEvent normalizes a Paystack webhook. Only charge.success drives the
// ledger; everything else is reported as unsupported.
func (c *PaystackClient) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event paystackWebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("paystack webhook decode failed: %w", err)
	}

	if event.Event != "charge.success" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Event)
	}

	return &WebhookEvent{
		Kind:             EventPaymentSucceeded,
		Reference:        event.Data.Reference,
		GatewayReference: fmt.Sprintf("%d", event.Data.ID),
		Amount:           event.Data.Amount,
		Status:           normalizePaystackStatus(event.Data.Status),
		Channel:          event.Data.Channel,
	}, nil
}

func normalizePaystackStatus(status string) VerifyStatus {
	switch strings.ToLower(status) {
	case "success":
		return VerifySuccess
	case "failed", "abandoned", "reversed":
		return VerifyFailed
	default:
		return VerifyPending
	}
}

// doRequest performs an authenticated API call and decodes the JSON response.
// Transport-level failures surface as ErrGatewayUnavailable so callers can treat
// them as retryable.
func (c *PaystackClient) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: paystack returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("paystack api error: status %d body %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode paystack response: %w", err)
		}
	}
	return nil
}
