/**
 * @description
 * This file implements the ledger-facing operations of the wallet service:
 * credits, debits, balance reads, and transaction history. All balance
 * mutations flow through the repository's atomic ledger step; this layer adds
 * validation, idempotency semantics, and event emission.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/metrics"
	"github.com/padipay/wallet-service/internal/store"
)

// CreditWallet applies a positive balance change identified by reference. A
// replayed reference is treated as success and returns the original
// transaction, so callers retrying after a timeout cannot double-credit.
func (s *Service) CreditWallet(ctx context.Context, userID uuid.UUID, amount int64, reference, txType string, metadata map[string]any) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", ErrInvalidRequest)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}
	if txType == "" {
		txType = domain.TxTypeDeposit
	}

	if _, err := s.repo.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	tx, err := s.repo.ApplyLedgerEntry(ctx, store.LedgerEntry{
		UserID:    userID,
		Reference: reference,
		Type:      txType,
		Amount:    amount,
		Metadata:  metadata,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			log.Printf("level=info component=ledger msg=\"duplicate credit reference; returning prior transaction\" reference=%s user_id=%s", reference, userID)
			return s.repo.FindTransactionByReference(ctx, reference)
		}
		return nil, err
	}

	metrics.CreditsTotal.WithLabelValues(txType).Inc()
	return tx, nil
}

// DebitWallet applies a negative balance change identified by reference. The
// same idempotency contract as CreditWallet applies.
func (s *Service) DebitWallet(ctx context.Context, userID uuid.UUID, amount int64, reference, txType string, metadata map[string]any) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive", ErrInvalidRequest)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}
	if txType == "" {
		txType = domain.TxTypeBillPayment
	}

	tx, err := s.repo.ApplyLedgerEntry(ctx, store.LedgerEntry{
		UserID:    userID,
		Reference: reference,
		Type:      txType,
		Amount:    -amount,
		Metadata:  metadata,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			log.Printf("level=info component=ledger msg=\"duplicate debit reference; returning prior transaction\" reference=%s user_id=%s", reference, userID)
			return s.repo.FindTransactionByReference(ctx, reference)
		}
		return nil, err
	}
	return tx, nil
}

// GetBalance returns the user's wallet balance, provisioning a wallet on first
// access.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.BalanceResponse, error) {
	wallet, err := s.repo.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceResponse{
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
		Status:   wallet.Status,
	}, nil
}

// ListTransactions returns the user's transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, opts)
}
