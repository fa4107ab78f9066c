/**
 * @description
 * This file defines the payment record domain model. A payment record tracks the
 * lifecycle of one externally-initiated funding attempt from initialization at a
 * gateway until the wallet credit lands (or the attempt fails).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates the lifecycle states of a funding attempt.
// pending is the only non-terminal state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// FailureReasonAmountMismatch marks a payment failed because the gateway-reported
// amount disagreed with the recorded amount beyond tolerance.
const FailureReasonAmountMismatch = "amount_mismatch"

// PaymentRecord maps to the `payment_records` table (unique on reference,
// secondary index on gateway_reference).
type PaymentRecord struct {
	ID               uuid.UUID      `json:"id"`
	Reference        string         `json:"reference"`
	UserID           uuid.UUID      `json:"user_id"`
	Amount           int64          `json:"amount"` // in kobo
	Gateway          string         `json:"gateway"`
	GatewayReference string         `json:"gateway_reference"`
	Status           PaymentStatus  `json:"status"`
	WalletCredited   bool           `json:"wallet_credited"`
	FailureReason    *string        `json:"failure_reason,omitempty"`
	Channel          string         `json:"channel,omitempty"`
	RawResponse      map[string]any `json:"raw_response,omitempty"`
	VerifiedAt       *time.Time     `json:"verified_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsSettled reports whether the payment has completed its full lifecycle:
// verified successful and the wallet credit applied.
func (p *PaymentRecord) IsSettled() bool {
	return p.Status == PaymentSuccess && p.WalletCredited
}

// FundWalletRequest is the DTO for funding initiation API requests.
type FundWalletRequest struct {
	Amount  int64  `json:"amount"` // in kobo
	Gateway string `json:"gateway"`
	Email   string `json:"email"`
}

// FundWalletResponse is returned to the client after a funding attempt has been
// initialized at the gateway.
type FundWalletResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	GatewayReference string `json:"gateway_reference"`
}

// SettlementResult summarizes the outcome of a verification or webhook-driven
// settlement attempt for API responses.
type SettlementResult struct {
	Reference      string        `json:"reference"`
	Status         PaymentStatus `json:"status"`
	Amount         int64         `json:"amount"` // in kobo
	WalletCredited bool          `json:"wallet_credited"`
	Balance        *int64        `json:"balance,omitempty"` // post-credit balance when available
	Message        string        `json:"message,omitempty"`
}
