/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the wallet-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (e.g., PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
)

// LedgerEntry is the input for the atomic balance mutation step. Amount is
// signed: positive credits the wallet, negative debits it.
type LedgerEntry struct {
	UserID    uuid.UUID
	Reference string
	Type      string
	Amount    int64 // in kobo, signed
	Metadata  map[string]any
}

// AuditReport is the result of recomputing a user's balance from the
// transaction log.
type AuditReport struct {
	UserID          uuid.UUID `json:"user_id"`
	StoredBalance   int64     `json:"stored_balance"`
	ComputedBalance int64     `json:"computed_balance"`
	Difference      int64     `json:"difference"`
	IsValid         bool      `json:"is_valid"`
}

// CreditRetry is one entry of the durable retry queue for wallet credits that
// failed on transient store errors. Persisted so retry state survives restarts
// and is shared across instances.
type CreditRetry struct {
	Reference string
	UserID    uuid.UUID
	Amount    int64
	Type      string
	Attempts  int
	LastError string
	NextRunAt time.Time
	Exhausted bool
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Wallet ledger methods
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// ApplyLedgerEntry performs the atomic read-modify-write: lock the wallet
	// row, validate status and funds, update the balance, and insert the
	// transaction row, all inside one database transaction. A duplicate reference
	// yields ErrDuplicateReference with no balance effect.
	ApplyLedgerEntry(ctx context.Context, entry LedgerEntry) (*domain.Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	TransactionExists(ctx context.Context, reference string) (bool, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)

	// Payment record methods
	CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord) error
	UpdateGatewayReference(ctx context.Context, reference, gatewayReference string) error
	FindPaymentByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error)
	FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*domain.PaymentRecord, error)
	// MarkPaymentVerified transitions a pending record to its terminal status.
	// First writer wins: returns false without error when the record already
	// left pending.
	MarkPaymentVerified(ctx context.Context, reference string, status domain.PaymentStatus, failureReason *string, channel string, raw map[string]any) (bool, error)
	MarkWalletCredited(ctx context.Context, reference string) error
	ListUncreditedPayments(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentRecord, error)

	// Virtual account methods
	CreateVirtualAccount(ctx context.Context, account *domain.VirtualAccount) error
	FindVirtualAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.VirtualAccount, error)
	FindVirtualAccountByNumber(ctx context.Context, accountNumber string) (*domain.VirtualAccount, error)

	// Reconciliation methods
	ComputeAudit(ctx context.Context, userID uuid.UUID) (*AuditReport, error)
	UpsertCreditRetry(ctx context.Context, retry CreditRetry, maxAttempts int, nextRunAt time.Time) error
	ListDueCreditRetries(ctx context.Context, now time.Time, limit int) ([]CreditRetry, error)
	ResolveCreditRetry(ctx context.Context, reference string) error
	ListExhaustedCreditRetries(ctx context.Context, limit int) ([]CreditRetry, error)
}
