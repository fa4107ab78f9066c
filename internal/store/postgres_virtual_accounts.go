/**
 * @description
 * This file provides the PostgreSQL implementation of virtual account
 * persistence. A virtual account row owns a set of child rows in
 * virtual_account_numbers, one per partner bank, and inbound bank-transfer
 * webhooks resolve the owning user by destination account number.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/padipay/wallet-service/internal/domain"
)

// CreateVirtualAccount persists a reserved virtual account and its bank account
// numbers in one database transaction.
func (r *PostgresRepository) CreateVirtualAccount(ctx context.Context, account *domain.VirtualAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO virtual_accounts (id, user_id, account_reference, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, insert,
		account.ID, account.UserID, account.AccountReference, account.Status,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return err
	}

	for _, bank := range account.Banks {
		_, err = tx.Exec(ctx,
			`INSERT INTO virtual_account_numbers (virtual_account_id, bank_name, account_number, account_name)
			 VALUES ($1, $2, $3, $4)`,
			account.ID, bank.BankName, bank.AccountNumber, bank.AccountName,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindVirtualAccountByUserID retrieves a user's virtual account with its bank
// account numbers.
func (r *PostgresRepository) FindVirtualAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.VirtualAccount, error) {
	query := `
		SELECT id, user_id, account_reference, status, created_at, updated_at
		FROM virtual_accounts
		WHERE user_id = $1
	`
	return r.loadVirtualAccount(ctx, r.db.QueryRow(ctx, query, userID))
}

// FindVirtualAccountByNumber resolves the virtual account owning a destination
// bank account number. This is the attribution lookup for bank-transfer webhooks.
func (r *PostgresRepository) FindVirtualAccountByNumber(ctx context.Context, accountNumber string) (*domain.VirtualAccount, error) {
	query := `
		SELECT va.id, va.user_id, va.account_reference, va.status, va.created_at, va.updated_at
		FROM virtual_accounts va
		JOIN virtual_account_numbers van ON van.virtual_account_id = va.id
		WHERE van.account_number = $1
	`
	return r.loadVirtualAccount(ctx, r.db.QueryRow(ctx, query, accountNumber))
}

func (r *PostgresRepository) loadVirtualAccount(ctx context.Context, row pgx.Row) (*domain.VirtualAccount, error) {
	var account domain.VirtualAccount
	err := row.Scan(
		&account.ID, &account.UserID, &account.AccountReference,
		&account.Status, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrVirtualAccountNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT bank_name, account_number, account_name
		 FROM virtual_account_numbers
		 WHERE virtual_account_id = $1
		 ORDER BY bank_name`,
		account.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var bank domain.VirtualAccountBank
		if err := rows.Scan(&bank.BankName, &bank.AccountNumber, &bank.AccountName); err != nil {
			return nil, err
		}
		account.Banks = append(account.Banks, bank)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &account, nil
}
