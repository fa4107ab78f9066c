/**
 * @description
 * Monnify adapter. Covers hosted-checkout funding plus the bank-transfer rail:
 * reserved (virtual) account provisioning and SUCCESSFUL_TRANSACTION webhooks,
 * including push credits into reserved accounts that have no prior payment
 * record on our side.
 *
 * @notes
 * - Monnify denominates amounts in naira with decimals; every amount is
 *   converted to int64 kobo at this boundary.
 * - API calls authenticate with a short-lived bearer token obtained from the
 *   login endpoint using basic credentials; the token is cached until shortly
 *   before expiry.
 * - Webhook signatures arrive in the `monnify-signature` header as a hex
 *   HMAC-SHA512 over the raw request body, keyed with the client secret.
 */

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const monnifyName = "monnify"

// MonnifyClient talks to the Monnify REST API.
type MonnifyClient struct {
	BaseURL      string
	APIKey       string
	ClientSecret string
	ContractCode string
	HTTPClient   *http.Client

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMonnifyClient creates a Monnify adapter with a bounded request timeout.
func NewMonnifyClient(baseURL, apiKey, clientSecret, contractCode string, timeout time.Duration) *MonnifyClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MonnifyClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		ClientSecret: clientSecret,
		ContractCode: contractCode,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *MonnifyClient) Name() string { return monnifyName }

type monnifyEnvelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type monnifyLoginBody struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type monnifyInitBody struct {
	TransactionReference string `json:"transactionReference"`
	PaymentReference     string `json:"paymentReference"`
	CheckoutURL          string `json:"checkoutUrl"`
}

type monnifyQueryBody struct {
	PaymentStatus string      `json:"paymentStatus"`
	AmountPaid    json.Number `json:"amountPaid"` // naira
	CompletedOn   string      `json:"completedOn"`
	PaymentMethod string      `json:"paymentMethod"`
}

type monnifyReservedAccountBody struct {
	AccountReference string `json:"accountReference"`
	Accounts         []struct {
		BankName      string `json:"bankName"`
		AccountNumber string `json:"accountNumber"`
		AccountName   string `json:"accountName"`
	} `json:"accounts"`
}

type monnifyWebhookPayload struct {
	EventType string `json:"eventType"`
	EventData struct {
		PaymentReference     string      `json:"paymentReference"`
		TransactionReference string      `json:"transactionReference"`
		AmountPaid           json.Number `json:"amountPaid"` // naira
		PaymentMethod        string      `json:"paymentMethod"`
		PaymentStatus        string      `json:"paymentStatus"`
		Product              struct {
			Type      string `json:"type"`
			Reference string `json:"reference"`
		} `json:"product"`
		DestinationAccountInformation struct {
			AccountNumber string `json:"accountNumber"`
			BankName      string `json:"bankName"`
		} `json:"destinationAccountInformation"`
	} `json:"eventData"`
}

// Initialize starts a hosted-checkout transaction and returns the checkout URL.
func (c *MonnifyClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	payload := map[string]any{
		"amount":             nairaFromKobo(req.Amount),
		"customerName":       req.Name,
		"customerEmail":      req.Email,
		"paymentReference":   req.Reference,
		"paymentDescription": "Wallet funding",
		"currencyCode":       "NGN",
		"contractCode":       c.ContractCode,
		"redirectUrl":        req.CallbackURL,
	}

	var body monnifyInitBody
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/merchant/transactions/init-transaction", payload, &body); err != nil {
		return nil, err
	}

	return &InitializeResult{
		AuthorizationURL: body.CheckoutURL,
		GatewayReference: body.TransactionReference,
	}, nil
}

// Verify queries a transaction by the payment reference we supplied at init.
func (c *MonnifyClient) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var body monnifyQueryBody
	path := "/api/v1/merchant/transactions/query?paymentReference=" + reference
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Status:  normalizeMonnifyStatus(body.PaymentStatus),
		Amount:  koboFromNaira(body.AmountPaid),
		Channel: strings.ToLower(body.PaymentMethod),
		Raw: map[string]any{
			"paymentStatus": body.PaymentStatus,
			"amountPaid":    body.AmountPaid.String(),
			"paymentMethod": body.PaymentMethod,
		},
	}
	if body.CompletedOn != "" {
		if completed, err := time.Parse("2006-01-02T15:04:05.000", body.CompletedOn); err == nil {
			result.PaidAt = &completed
		}
	}
	return result, nil
}

// SignatureHeader returns the header Monnify signs its webhooks with.
func (c *MonnifyClient) SignatureHeader() string { return "monnify-signature" }

// VerifySignature checks the monnify-signature header: hex HMAC-SHA512 of the
// raw body keyed with the client secret, compared in constant time.
func (c *MonnifyClient) VerifySignature(signatureHeader string, payload []byte) bool {
	if c.ClientSecret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.ClientSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signatureHeader))), []byte(expected))
}

// ParseWebhookEvent normalizes a Monnify webhook. SUCCESSFUL_TRANSACTION events
// on the RESERVED_ACCOUNT product are bank-transfer push credits; the same event
// on a checkout transaction completes a funding attempt we initialized.
func (c *MonnifyClient) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event monnifyWebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("monnify webhook decode failed: %w", err)
	}

	if event.EventType != "SUCCESSFUL_TRANSACTION" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.EventType)
	}

	data := event.EventData
	normalized := &WebhookEvent{
		Reference:        data.PaymentReference,
		GatewayReference: data.TransactionReference,
		Amount:           koboFromNaira(data.AmountPaid),
		Status:           normalizeMonnifyStatus(data.PaymentStatus),
		Channel:          strings.ToLower(data.PaymentMethod),
		Metadata: map[string]any{
			"product_type": data.Product.Type,
			"bank_name":    data.DestinationAccountInformation.BankName,
		},
	}

	if strings.EqualFold(data.Product.Type, "RESERVED_ACCOUNT") {
		normalized.Kind = EventBankTransferCredit
		normalized.AccountNumber = data.DestinationAccountInformation.AccountNumber
		// Push credits carry no caller reference; the vendor transaction
		// reference is the idempotency key for the ledger.
		if normalized.Reference == "" {
			normalized.Reference = data.TransactionReference
		}
	} else {
		normalized.Kind = EventPaymentSucceeded
	}

	return normalized, nil
}

// ReserveAccount provisions dedicated virtual account numbers for a user.
func (c *MonnifyClient) ReserveAccount(ctx context.Context, userReference string, req InitializeRequest) (*ReservedAccount, error) {
	payload := map[string]any{
		"accountReference":     userReference,
		"accountName":          req.Name,
		"currencyCode":         "NGN",
		"contractCode":         c.ContractCode,
		"customerEmail":        req.Email,
		"customerName":         req.Name,
		"getAllAvailableBanks": true,
	}

	var body monnifyReservedAccountBody
	if err := c.doRequest(ctx, http.MethodPost, "/api/v2/bank-transfer/reserved-accounts", payload, &body); err != nil {
		return nil, err
	}

	reserved := &ReservedAccount{AccountReference: body.AccountReference}
	for _, acct := range body.Accounts {
		reserved.Banks = append(reserved.Banks, ReservedAccountBank{
			BankName:      acct.BankName,
			AccountNumber: acct.AccountNumber,
			AccountName:   acct.AccountName,
		})
	}
	return reserved, nil
}

func normalizeMonnifyStatus(status string) VerifyStatus {
	switch strings.ToUpper(status) {
	case "PAID":
		return VerifySuccess
	case "FAILED", "EXPIRED", "CANCELLED":
		return VerifyFailed
	default:
		return VerifyPending
	}
}

// koboFromNaira converts a naira decimal into kobo, rounding to the nearest
// kobo. Monnify reports amounts like "1000.00".
func koboFromNaira(amount json.Number) int64 {
	value, err := amount.Float64()
	if err != nil {
		value, err = strconv.ParseFloat(strings.TrimSpace(amount.String()), 64)
		if err != nil {
			return 0
		}
	}
	return int64(math.Round(value * 100))
}

// nairaFromKobo converts kobo into the decimal naira value Monnify expects.
func nairaFromKobo(amount int64) float64 {
	return float64(amount) / 100
}

// login fetches and caches a bearer token using basic credentials.
func (c *MonnifyClient) login(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/auth/login", nil)
	if err != nil {
		return "", err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.APIKey + ":" + c.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading login response: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("monnify login failed: status %d body %s", resp.StatusCode, string(raw))
	}

	var envelope monnifyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode monnify login response: %w", err)
	}
	if !envelope.RequestSuccessful {
		return "", fmt.Errorf("monnify login rejected: %s", envelope.ResponseMessage)
	}

	var body monnifyLoginBody
	if err := json.Unmarshal(envelope.ResponseBody, &body); err != nil {
		return "", fmt.Errorf("failed to decode monnify login body: %w", err)
	}

	c.accessToken = body.AccessToken
	// Refresh one minute early to avoid using a token that expires mid-request.
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// doRequest performs a token-authenticated API call, unwraps the Monnify
// response envelope, and decodes the body into out.
func (c *MonnifyClient) doRequest(ctx context.Context, method, path string, body, out any) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}

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
	req.Header.Set("Authorization", "Bearer "+token)
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
		return fmt.Errorf("%w: monnify returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope monnifyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode monnify response: %w", err)
	}
	if !envelope.RequestSuccessful {
		return fmt.Errorf("monnify api error: %s", envelope.ResponseMessage)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.ResponseBody, out); err != nil {
			return fmt.Errorf("failed to decode monnify response body: %w", err)
		}
	}
	return nil
}
