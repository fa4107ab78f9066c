/**
 * @description
 * This file implements the reconciliation monitor: balance audits against the
 * transaction log, crash-window repair of verified-but-uncredited payments, and
 * the scheduler that drains the durable credit retry queue with exponential
 * backoff.
 *
 * @notes
 * - Audits never auto-correct. A drift means either a bug or tampering, and
 *   silently rewriting the balance would destroy the evidence. The report is
 *   logged and surfaced for operator action.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/metrics"
	"github.com/padipay/wallet-service/internal/store"
)

// ErrBalanceDrift is returned alongside the audit report when the stored
// balance disagrees with the transaction log.
var ErrBalanceDrift = errors.New("wallet balance drift detected")

// AuditUser recomputes the user's balance from their transaction log and
// compares it to the stored wallet balance. The report is always returned;
// ErrBalanceDrift accompanies it when the two disagree.
func (s *Service) AuditUser(ctx context.Context, userID uuid.UUID) (*store.AuditReport, error) {
	report, err := s.repo.ComputeAudit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !report.IsValid {
		metrics.BalanceDriftDetected.Inc()
		log.Printf("level=error component=reconcile msg=\"balance drift detected\" user_id=%s stored=%d computed=%d difference=%d", userID, report.StoredBalance, report.ComputedBalance, report.Difference)
		return report, ErrBalanceDrift
	}
	return report, nil
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	Scanned   int      `json:"scanned"`
	Repaired  int      `json:"repaired"`
	Requeued  int      `json:"requeued"`
	Failures  []string `json:"failures,omitempty"`
	WindowEnd string   `json:"window_end"`
}

// ReconcileWindow sweeps for payments that were verified successful but whose
// wallet credit never landed, typically because the process died between the
// two steps. Each is re-credited under its original reference, which the
// ledger's idempotency makes safe to attempt against any partial state. A
// non-positive gracePeriod falls back to the configured reconcile window.
func (s *Service) ReconcileWindow(ctx context.Context, gracePeriod time.Duration, limit int) (*ReconcileReport, error) {
	if gracePeriod <= 0 {
		gracePeriod = time.Duration(s.cfg.ReconcileWindowHours) * time.Hour
	}
	cutoff := time.Now().Add(-gracePeriod)

	payments, err := s.repo.ListUncreditedPayments(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Scanned: len(payments), WindowEnd: cutoff.UTC().Format(time.RFC3339)}
	for _, p := range payments {
		_, err := s.CreditWallet(ctx, p.UserID, p.Amount, p.Reference, domain.TxTypeDeposit, map[string]any{
			"gateway":    p.Gateway,
			"reconciled": true,
		})
		if err != nil {
			s.queueCreditRetry(ctx, p.Reference, p.UserID, p.Amount, domain.TxTypeDeposit, err)
			report.Requeued++
			report.Failures = append(report.Failures, p.Reference)
			continue
		}
		if err := s.repo.MarkWalletCredited(ctx, p.Reference); err != nil {
			log.Printf("level=error component=reconcile msg=\"credit applied but flag update failed\" reference=%s err=%v", p.Reference, err)
		}
		report.Repaired++
		log.Printf("level=info component=reconcile msg=\"uncredited payment repaired\" reference=%s user_id=%s amount=%d", p.Reference, p.UserID, p.Amount)
	}
	return report, nil
}

// RetryFailedCredits drains due entries from the durable retry queue. A credit
// that succeeds resolves its entry; one that fails again is rescheduled with
// doubled delay until the attempt budget is exhausted, after which the entry
// waits for manual review.
func (s *Service) RetryFailedCredits(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListDueCreditRetries(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, retry := range due {
		_, err := s.CreditWallet(ctx, retry.UserID, retry.Amount, retry.Reference, retry.Type, map[string]any{
			"retried":  true,
			"attempts": retry.Attempts,
		})
		if err != nil {
			nextRun := time.Now().Add(s.retryDelay(retry.Attempts + 1))
			retry.LastError = err.Error()
			if uerr := s.repo.UpsertCreditRetry(ctx, retry, s.cfg.CreditRetryMaxAttempts, nextRun); uerr != nil {
				log.Printf("level=error component=reconcile msg=\"failed to reschedule credit retry\" reference=%s err=%v", retry.Reference, uerr)
			}
			continue
		}

		if err := s.repo.ResolveCreditRetry(ctx, retry.Reference); err != nil {
			log.Printf("level=error component=reconcile msg=\"credit landed but retry entry not resolved\" reference=%s err=%v", retry.Reference, err)
		}
		if err := s.repo.MarkWalletCredited(ctx, retry.Reference); err != nil && !errors.Is(err, store.ErrPaymentNotFound) {
			log.Printf("level=warn component=reconcile msg=\"credited flag update failed\" reference=%s err=%v", retry.Reference, err)
		}
		settled++
		log.Printf("level=info component=reconcile msg=\"queued credit settled\" reference=%s user_id=%s attempts=%d", retry.Reference, retry.UserID, retry.Attempts)
	}

	if exhausted, err := s.repo.ListExhaustedCreditRetries(ctx, limit); err == nil {
		metrics.CreditRetriesExhausted.Set(float64(len(exhausted)))
	}
	return settled, nil
}

// retryDelay computes the exponential backoff delay for the given attempt
// number (1-based): base, 2x, 4x, capped at one hour.
func (s *Service) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(s.cfg.CreditRetryBase) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= time.Hour {
			return time.Hour
		}
	}
	return delay
}

// RunReconciliationLoop periodically repairs the crash window and drains the
// retry queue until the context is cancelled. Intended to run in its own
// goroutine from main.
func (s *Service) RunReconciliationLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileWindow(ctx, 0, 100); err != nil {
				log.Printf("level=error component=reconcile msg=\"reconcile sweep failed\" err=%v", err)
			}
			if _, err := s.RetryFailedCredits(ctx, 100); err != nil {
				log.Printf("level=error component=reconcile msg=\"retry drain failed\" err=%v", err)
			}
		}
	}
}
