/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for wallets and ledger transactions. It contains the single most
 * safety-critical operation in the service: the atomic ledger entry step that
 * locks the wallet row, validates the mutation, and writes the balance update
 * and the transaction record in one database transaction.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/padipay/wallet-service/internal/domain"
)

var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletInactive         = errors.New("wallet is not active")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDuplicateReference     = errors.New("transaction reference already used")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrPaymentNotFound        = errors.New("payment record not found")
	ErrVirtualAccountNotFound = errors.New("virtual account not found")
)

// uniqueViolation is the PostgreSQL error code raised when an insert hits a
// unique constraint. It is the dedup mechanism for replayed references.
const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, user_id, balance, currency, status, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance active
// wallet on first access. The unique constraint on user_id makes concurrent
// first access safe: the losing insert is a no-op and both callers read the
// same row.
func (r *PostgresRepository) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	insert := `
		INSERT INTO wallets (id, user_id, balance, currency, status)
		VALUES ($1, $2, 0, 'NGN', 'active')
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, uuid.New(), userID); err != nil {
		return nil, err
	}
	return r.GetWallet(ctx, userID)
}

// GetWallet retrieves a wallet by its owning user.
func (r *PostgresRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.db.QueryRow(ctx, query, userID))
}

// ApplyLedgerEntry performs the atomic read-modify-write on a wallet. The
// wallet row is locked with FOR UPDATE for the duration of the database
// transaction; the balance update and the transaction insert commit together or
// not at all. A replayed reference trips the unique index on
// transactions.reference and surfaces as ErrDuplicateReference with the balance
// untouched, which is what makes the operation idempotent across concurrent
// callers and service instances.
func (r *PostgresRepository) ApplyLedgerEntry(ctx context.Context, entry LedgerEntry) (*domain.Transaction, error) {
	if entry.Amount == 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var wallet domain.Wallet
	lock := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, lock, entry.UserID).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.Currency,
		&wallet.Status, &wallet.CreatedAt, &wallet.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if wallet.Status != domain.WalletActive {
		return nil, ErrWalletInactive
	}

	balanceBefore := wallet.Balance
	balanceAfter := balanceBefore + entry.Amount
	if balanceAfter < 0 {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balanceAfter, wallet.ID,
	); err != nil {
		return nil, err
	}

	metadata, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	record := domain.Transaction{
		ID:            uuid.New(),
		Reference:     entry.Reference,
		UserID:        entry.UserID,
		Type:          entry.Type,
		Amount:        entry.Amount,
		Status:        "completed",
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Metadata:      entry.Metadata,
	}

	insert := `
		INSERT INTO transactions (
			id, reference, user_id, type, amount, status, balance_before, balance_after, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insert,
		record.ID, record.Reference, record.UserID, record.Type, record.Amount,
		record.Status, record.BalanceBefore, record.BalanceAfter, metadata,
	).Scan(&record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// The rollback of the surrounding transaction discards the balance
			// update, so a replay leaves the wallet exactly as it was.
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}

const transactionColumns = `id, reference, user_id, type, amount, status, balance_before, balance_after, metadata, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var metadata []byte
	err := row.Scan(
		&t.ID, &t.Reference, &t.UserID, &t.Type, &t.Amount, &t.Status,
		&t.BalanceBefore, &t.BalanceAfter, &metadata, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
	}
	return &t, nil
}

// FindTransactionByReference retrieves a transaction by its idempotency key.
func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, reference))
}

// TransactionExists reports whether a reference has already produced a ledger effect.
func (r *PostgresRepository) TransactionExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`, reference,
	).Scan(&exists)
	return exists, err
}

// ListTransactions retrieves a user's transaction history newest-first, with an
// optional type filter and clamped pagination.
func (r *PostgresRepository) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}
	argPos := 2
	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, opts.Type)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var metadata []byte
		if err := rows.Scan(
			&t.ID, &t.Reference, &t.UserID, &t.Type, &t.Amount, &t.Status,
			&t.BalanceBefore, &t.BalanceAfter, &metadata, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
			}
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// ComputeAudit recomputes a user's balance as the sum of their transaction
// amounts and compares it to the stored wallet balance.
func (r *PostgresRepository) ComputeAudit(ctx context.Context, userID uuid.UUID) (*AuditReport, error) {
	wallet, err := r.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var computed int64
	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&computed)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		UserID:          userID,
		StoredBalance:   wallet.Balance,
		ComputedBalance: computed,
		Difference:      wallet.Balance - computed,
	}
	report.IsValid = report.Difference == 0
	return report, nil
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return encoded, nil
}
