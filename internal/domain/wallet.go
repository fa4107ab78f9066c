/**
 * @description
 * This file defines the wallet domain model. A wallet holds the stored NGN balance
 * for a single user and is the only record mutated by ledger operations.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 * - The balance is never mutated outside internal/store's atomic ledger step.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus enumerates the lifecycle states of a wallet.
type WalletStatus string

const (
	WalletActive    WalletStatus = "active"
	WalletSuspended WalletStatus = "suspended"
	WalletLocked    WalletStatus = "locked"
)

// Wallet represents a user's stored balance. Maps to the `wallets` table,
// which carries a uniqueness constraint on user_id.
type Wallet struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Balance   int64        `json:"balance"` // in kobo
	Currency  string       `json:"currency"`
	Status    WalletStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CanTransact reports whether ledger operations are permitted on the wallet.
func (w *Wallet) CanTransact() bool {
	return w.Status == WalletActive
}

// BalanceResponse is the DTO returned by the balance endpoint.
type BalanceResponse struct {
	Balance  int64        `json:"balance"` // in kobo
	Currency string       `json:"currency"`
	Status   WalletStatus `json:"status"`
}
