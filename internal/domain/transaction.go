/**
 * @description
 * This file defines the ledger transaction domain model. A transaction is the
 * immutable record of exactly one balance change on a wallet; the sequence of a
 * user's transactions ordered by created_at reconstructs the wallet balance by
 * prefix sum.
 *
 * @notes
 * - `Reference` is the global idempotency key. The database enforces its
 *   uniqueness, which is what collapses replayed gateway events into a single
 *   balance effect across service instances.
 * - Transactions are only ever written in their terminal state; there is no
 *   pending transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Well-known transaction types. The column is an open string tag, so product
// surfaces may introduce new types without a schema change.
const (
	TxTypeDeposit              = "deposit"
	TxTypeBillPayment          = "bill_payment"
	TxTypeRefund               = "refund"
	TxTypeTransfer             = "transfer"
	TxTypeVirtualAccountCredit = "virtual_account_credit"
)

// Transaction represents one completed balance change. Maps to the
// `transactions` table (unique on reference, indexed on user_id + created_at).
type Transaction struct {
	ID            uuid.UUID      `json:"id"`
	Reference     string         `json:"reference"`
	UserID        uuid.UUID      `json:"user_id"`
	Type          string         `json:"type"`
	Amount        int64          `json:"amount"` // in kobo; positive = credit, negative = debit
	Status        string         `json:"status"` // always 'completed'
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TransactionListOptions carries the filter and pagination parameters for
// transaction history queries.
type TransactionListOptions struct {
	Type   string
	Limit  int
	Offset int
}
