/**
 * @description
 * This file provides the PostgreSQL implementation of payment record and credit
 * retry persistence. Payment records track the lifecycle of externally-initiated
 * funding attempts; credit retries form the durable queue for wallet credits
 * that failed on transient errors after a payment was verified successful.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/padipay/wallet-service/internal/domain"
)

const paymentColumns = `id, reference, user_id, amount, gateway, gateway_reference, status, wallet_credited, failure_reason, channel, raw_response, verified_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	var raw []byte
	err := row.Scan(
		&p.ID, &p.Reference, &p.UserID, &p.Amount, &p.Gateway, &p.GatewayReference,
		&p.Status, &p.WalletCredited, &p.FailureReason, &p.Channel, &raw,
		&p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.RawResponse); err != nil {
			return nil, fmt.Errorf("failed to decode payment raw response: %w", err)
		}
	}
	return &p, nil
}

// CreatePaymentRecord inserts a new pending payment record.
func (r *PostgresRepository) CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = domain.PaymentPending
	}
	query := `
		INSERT INTO payment_records (id, reference, user_id, amount, gateway, gateway_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		record.ID, record.Reference, record.UserID, record.Amount,
		record.Gateway, record.GatewayReference, record.Status,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
}

// UpdateGatewayReference stores the gateway's own transaction identifier
// against an existing payment record.
func (r *PostgresRepository) UpdateGatewayReference(ctx context.Context, reference, gatewayReference string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payment_records SET gateway_reference = $1, updated_at = NOW() WHERE reference = $2`,
		gatewayReference, reference,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// FindPaymentByReference retrieves a payment record by our internal reference.
func (r *PostgresRepository) FindPaymentByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE reference = $1`
	return scanPayment(r.db.QueryRow(ctx, query, reference))
}

// FindPaymentByGatewayReference retrieves a payment record by the gateway's
// transaction identifier, as carried in webhook payloads.
func (r *PostgresRepository) FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE gateway_reference = $1`
	return scanPayment(r.db.QueryRow(ctx, query, gatewayReference))
}

// MarkPaymentVerified transitions a pending payment record to its terminal
// status. The WHERE status = 'pending' guard makes the transition first-writer
// wins: a concurrent verify and webhook can both attempt it, and exactly one
// observes rows affected.
func (r *PostgresRepository) MarkPaymentVerified(ctx context.Context, reference string, status domain.PaymentStatus, failureReason *string, channel string, raw map[string]any) (bool, error) {
	encoded, err := encodeMetadata(raw)
	if err != nil {
		return false, err
	}
	query := `
		UPDATE payment_records
		SET status = $1, failure_reason = $2, channel = $3, raw_response = $4,
		    verified_at = NOW(), updated_at = NOW()
		WHERE reference = $5 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, status, failureReason, channel, encoded, reference)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkWalletCredited flags a payment record as having produced its ledger effect.
func (r *PostgresRepository) MarkWalletCredited(ctx context.Context, reference string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payment_records SET wallet_credited = TRUE, updated_at = NOW() WHERE reference = $1`,
		reference,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListUncreditedPayments returns successful payments whose wallet credit never
// landed, limited to records older than the given cutoff so in-flight
// settlements are not swept up.
func (r *PostgresRepository) ListUncreditedPayments(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE status = 'success' AND wallet_credited = FALSE AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]domain.PaymentRecord, error) {
	var payments []domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		var raw []byte
		if err := rows.Scan(
			&p.ID, &p.Reference, &p.UserID, &p.Amount, &p.Gateway, &p.GatewayReference,
			&p.Status, &p.WalletCredited, &p.FailureReason, &p.Channel, &raw,
			&p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p.RawResponse); err != nil {
				return nil, fmt.Errorf("failed to decode payment raw response: %w", err)
			}
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpsertCreditRetry records a failed credit attempt in the durable retry queue.
// A new reference starts at one attempt; an existing one has its attempt count
// incremented. The row is flagged exhausted once attempts reach maxAttempts,
// after which the scheduler stops picking it up and it waits for manual review.
func (r *PostgresRepository) UpsertCreditRetry(ctx context.Context, retry CreditRetry, maxAttempts int, nextRunAt time.Time) error {
	query := `
		INSERT INTO credit_retries (reference, user_id, amount, type, attempts, last_error, next_run_at, exhausted)
		VALUES ($1, $2, $3, $4, 1, $5, $6, FALSE)
		ON CONFLICT (reference) DO UPDATE
		SET attempts = credit_retries.attempts + 1,
		    last_error = EXCLUDED.last_error,
		    next_run_at = EXCLUDED.next_run_at,
		    exhausted = credit_retries.attempts + 1 >= $7,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		retry.Reference, retry.UserID, retry.Amount, retry.Type,
		retry.LastError, nextRunAt, maxAttempts,
	)
	return err
}

const creditRetryColumns = `reference, user_id, amount, type, attempts, last_error, next_run_at, exhausted`

// ListDueCreditRetries returns non-exhausted retries whose scheduled time has
// passed, oldest first.
func (r *PostgresRepository) ListDueCreditRetries(ctx context.Context, now time.Time, limit int) ([]CreditRetry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + creditRetryColumns + `
		FROM credit_retries
		WHERE exhausted = FALSE AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCreditRetries(rows)
}

// ResolveCreditRetry removes a retry entry after the credit finally landed.
func (r *PostgresRepository) ResolveCreditRetry(ctx context.Context, reference string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM credit_retries WHERE reference = $1`, reference)
	return err
}

// ListExhaustedCreditRetries returns retries that burned through their attempt
// budget and now require manual intervention.
func (r *PostgresRepository) ListExhaustedCreditRetries(ctx context.Context, limit int) ([]CreditRetry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + creditRetryColumns + `
		FROM credit_retries
		WHERE exhausted = TRUE
		ORDER BY next_run_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCreditRetries(rows)
}

func collectCreditRetries(rows pgx.Rows) ([]CreditRetry, error) {
	var retries []CreditRetry
	for rows.Next() {
		var cr CreditRetry
		if err := rows.Scan(
			&cr.Reference, &cr.UserID, &cr.Amount, &cr.Type,
			&cr.Attempts, &cr.LastError, &cr.NextRunAt, &cr.Exhausted,
		); err != nil {
			return nil, err
		}
		retries = append(retries, cr)
	}
	return retries, rows.Err()
}
