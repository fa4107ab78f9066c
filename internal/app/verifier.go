/**
 * @description
 * This file implements payment verification and the shared settlement step.
 * Both the client-initiated verify flow and the webhook processor converge on
 * settle(), which transitions the payment record exactly once and applies the
 * wallet credit under the ledger's idempotency guarantee.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/metrics"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/rabbitmq"
)

// VerifyAndSettle queries the gateway for the payment's status and settles the
// record accordingly. Safe to call any number of times: an already-settled
// payment returns its terminal state without touching the ledger.
func (s *Service) VerifyAndSettle(ctx context.Context, reference string) (*domain.SettlementResult, error) {
	record, err := s.repo.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if record.Status != domain.PaymentPending {
		return s.resultFor(ctx, record), nil
	}

	adapter := s.gateways.Get(record.Gateway)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, record.Gateway)
	}

	verification, err := adapter.Verify(ctx, reference)
	if err != nil {
		// Transient gateway trouble must not fail the payment; the record stays
		// pending for a later verify or the webhook.
		return nil, err
	}

	switch verification.Status {
	case gateway.VerifySuccess:
		return s.settle(ctx, record, verification.Amount, verification.Channel, verification.Raw)
	case gateway.VerifyFailed:
		won, err := s.repo.MarkPaymentVerified(ctx, record.Reference, domain.PaymentFailed, nil, verification.Channel, verification.Raw)
		if err != nil {
			return nil, err
		}
		if !won {
			fresh, err := s.repo.FindPaymentByReference(ctx, record.Reference)
			if err != nil {
				return nil, err
			}
			return s.resultFor(ctx, fresh), nil
		}
		metrics.SettlementsTotal.WithLabelValues(record.Gateway, "failed").Inc()
		record.Status = domain.PaymentFailed
		return s.resultFor(ctx, record), nil
	default:
		// Still pending at the gateway.
		return s.resultFor(ctx, record), nil
	}
}

// settle transitions a pending payment to its terminal state and, on success,
// credits the wallet. The first-writer-wins transition in the store means a
// concurrent verify and webhook race resolves to exactly one credit; the loser
// re-reads the record and reports the winner's outcome.
func (s *Service) settle(ctx context.Context, record *domain.PaymentRecord, reportedAmount int64, channel string, raw map[string]any) (*domain.SettlementResult, error) {
	if !s.amountWithinTolerance(record.Amount, reportedAmount) {
		reason := domain.FailureReasonAmountMismatch
		won, err := s.repo.MarkPaymentVerified(ctx, record.Reference, domain.PaymentFailed, &reason, channel, raw)
		if err != nil {
			return nil, err
		}
		if !won {
			// Another path settled first; report its outcome.
			fresh, err := s.repo.FindPaymentByReference(ctx, record.Reference)
			if err != nil {
				return nil, err
			}
			return s.resultFor(ctx, fresh), nil
		}
		metrics.SettlementsTotal.WithLabelValues(record.Gateway, "amount_mismatch").Inc()
		log.Printf("level=warn component=verifier msg=\"amount mismatch; payment failed for manual review\" reference=%s expected=%d reported=%d", record.Reference, record.Amount, reportedAmount)
		record.Status = domain.PaymentFailed
		record.FailureReason = &reason
		return s.resultFor(ctx, record), nil
	}

	won, err := s.repo.MarkPaymentVerified(ctx, record.Reference, domain.PaymentSuccess, nil, channel, raw)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another path settled first; report its outcome.
		fresh, err := s.repo.FindPaymentByReference(ctx, record.Reference)
		if err != nil {
			return nil, err
		}
		return s.resultFor(ctx, fresh), nil
	}

	record.Status = domain.PaymentSuccess
	record.Channel = channel

	tx, err := s.CreditWallet(ctx, record.UserID, record.Amount, record.Reference, domain.TxTypeDeposit, map[string]any{
		"gateway": record.Gateway,
		"channel": channel,
	})
	if err != nil {
		// The payment is verified but the credit did not land. Queue a durable
		// retry; the scheduler completes the settlement later.
		s.queueCreditRetry(ctx, record.Reference, record.UserID, record.Amount, domain.TxTypeDeposit, err)
		return s.resultFor(ctx, record), nil
	}

	if err := s.repo.MarkWalletCredited(ctx, record.Reference); err != nil {
		log.Printf("level=error component=verifier msg=\"credit applied but flag update failed\" reference=%s err=%v", record.Reference, err)
	}
	record.WalletCredited = true

	metrics.SettlementsTotal.WithLabelValues(record.Gateway, "success").Inc()
	s.publishCreditSettled(ctx, record, tx)

	result := s.resultFor(ctx, record)
	result.Balance = &tx.BalanceAfter
	return result, nil
}

func (s *Service) queueCreditRetry(ctx context.Context, reference string, userID uuid.UUID, amount int64, txType string, cause error) {
	retry := store.CreditRetry{
		Reference: reference,
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		LastError: cause.Error(),
	}
	nextRun := time.Now().Add(s.retryDelay(1))
	if err := s.repo.UpsertCreditRetry(ctx, retry, s.cfg.CreditRetryMaxAttempts, nextRun); err != nil {
		log.Printf("level=error component=verifier msg=\"failed to queue credit retry\" reference=%s err=%v", reference, err)
		return
	}
	metrics.CreditRetriesTotal.Inc()
	log.Printf("level=warn component=verifier msg=\"credit failed; queued for retry\" reference=%s next_run=%s cause=%v", reference, nextRun.Format(time.RFC3339), cause)
}

func (s *Service) publishCreditSettled(ctx context.Context, record *domain.PaymentRecord, tx *domain.Transaction) {
	event := rabbitmq.CreditSettledEvent{
		UserID:    record.UserID,
		Reference: record.Reference,
		Amount:    record.Amount,
		Gateway:   record.Gateway,
		Channel:   record.Channel,
		Balance:   tx.BalanceAfter,
	}
	if err := s.eventProducer.PublishCreditSettled(ctx, event); err != nil {
		log.Printf("level=warn component=verifier msg=\"settlement event publish failed\" reference=%s err=%v", record.Reference, err)
	}
}

func (s *Service) resultFor(ctx context.Context, record *domain.PaymentRecord) *domain.SettlementResult {
	result := &domain.SettlementResult{
		Reference:      record.Reference,
		Status:         record.Status,
		Amount:         record.Amount,
		WalletCredited: record.WalletCredited,
	}
	if record.FailureReason != nil {
		result.Message = *record.FailureReason
	}
	if record.IsSettled() {
		if wallet, err := s.repo.GetWallet(ctx, record.UserID); err == nil {
			result.Balance = &wallet.Balance
		} else if !errors.Is(err, store.ErrWalletNotFound) {
			log.Printf("level=warn component=verifier msg=\"balance read failed for settlement result\" reference=%s err=%v", record.Reference, err)
		}
	}
	return result
}
