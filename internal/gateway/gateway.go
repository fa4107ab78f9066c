/**
 * @description
 * This package defines the capability interface that every payment gateway
 * adapter implements, plus the normalized shapes the rest of the service works
 * with. Adapters translate vendor-specific payloads into these shapes and are
 * stateless aside from their HTTP client.
 *
 * @notes
 * - All amounts crossing this boundary are int64 kobo. Adapters own the
 *   conversion from whatever unit their vendor uses.
 * - Signature verification always runs over the exact bytes received on the
 *   wire. Re-serializing the payload before computing the HMAC is a known source
 *   of verification bugs and is never done here.
 */

package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnsupportedEvent is returned by ParseWebhookEvent for event kinds the
	// adapter recognizes as valid but the ledger does not act on.
	ErrUnsupportedEvent = errors.New("unsupported webhook event")

	// ErrGatewayUnavailable marks transient transport failures. Callers treat it
	// as retryable, never as a definitive payment failure.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// VerifyStatus is the normalized status a gateway reports for a payment.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyFailed  VerifyStatus = "failed"
	VerifyPending VerifyStatus = "pending"
)

// EventKind classifies a parsed webhook event.
type EventKind string

const (
	// EventPaymentSucceeded is a completion notification for a funding attempt
	// this service initialized (a payment record exists).
	EventPaymentSucceeded EventKind = "payment.succeeded"

	// EventBankTransferCredit is a push credit into a reserved virtual account.
	// No payment record exists; the webhook is the first the system hears of it.
	EventBankTransferCredit EventKind = "bank_transfer.credit"
)

// InitializeRequest carries the payer details for starting a funding attempt.
type InitializeRequest struct {
	Email       string
	Name        string
	Amount      int64 // in kobo
	Reference   string
	CallbackURL string
}

// InitializeResult is the normalized response from a gateway's initialize call.
type InitializeResult struct {
	AuthorizationURL string
	GatewayReference string
}

// VerifyResult is the normalized response from a gateway's verify call.
type VerifyResult struct {
	Status  VerifyStatus
	Amount  int64 // in kobo
	PaidAt  *time.Time
	Channel string
	Raw     map[string]any
}

// WebhookEvent is the normalized form of an inbound gateway notification.
type WebhookEvent struct {
	Kind             EventKind
	Reference        string
	GatewayReference string
	Amount           int64 // in kobo
	Status           VerifyStatus
	Channel          string
	// AccountNumber is set for bank-transfer push credits and identifies the
	// destination virtual account.
	AccountNumber string
	Metadata      map[string]any
}

// ReservedAccount is the normalized result of provisioning a virtual account.
type ReservedAccount struct {
	AccountReference string
	Banks            []ReservedAccountBank
}

// ReservedAccountBank is one dedicated account number at a partner bank.
type ReservedAccountBank struct {
	BankName      string
	AccountNumber string
	AccountName   string
}

// Adapter is the common contract every supported payment processor implements.
type Adapter interface {
	// Name returns the gateway tag used in payment records and webhook routes.
	Name() string

	// Initialize starts a funding attempt at the vendor and returns the URL the
	// payer completes it on.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)

	// Verify queries the vendor for the current status of a payment.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)

	// SignatureHeader names the HTTP header this vendor carries its webhook
	// signature in.
	SignatureHeader() string

	// VerifySignature checks the webhook signature header against an HMAC over
	// the exact payload bytes, in constant time.
	VerifySignature(signatureHeader string, payload []byte) bool

	// ParseWebhookEvent normalizes a raw webhook payload. Returns
	// ErrUnsupportedEvent for kinds the ledger ignores.
	ParseWebhookEvent(payload []byte) (*WebhookEvent, error)
}

// AccountReserver is implemented by gateways that can provision dedicated
// virtual bank accounts for push credits.
type AccountReserver interface {
	ReserveAccount(ctx context.Context, userReference string, req InitializeRequest) (*ReservedAccount, error)
}

// Registry resolves a gateway tag to its adapter.
type Registry map[string]Adapter

// Get returns the adapter for tag, or nil when the tag is unknown.
func (r Registry) Get(tag string) Adapter {
	return r[tag]
}
