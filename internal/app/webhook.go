/**
 * @description
 * This file implements webhook intake from payment gateways. Processing always
 * acknowledges at the HTTP layer regardless of outcome. Two settlement paths
 * exist: completion events for payments this service initialized, and push
 * credits into reserved virtual accounts, which arrive with no prior payment
 * record.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/metrics"
	"github.com/padipay/wallet-service/internal/store"
)

// HandleWebhook verifies and processes a raw gateway notification. payload must
// be the exact bytes received on the wire; the signature is read from the
// adapter's own header and computed over those bytes before any parsing. Every
// error means the event could not be applied; the HTTP layer still acknowledges
// so the gateway does not hammer retries, and reconciliation picks up the slack.
func (s *Service) HandleWebhook(ctx context.Context, gatewayTag string, header http.Header, payload []byte) error {
	adapter := s.gateways.Get(gatewayTag)
	if adapter == nil {
		return fmt.Errorf("%w: %q", ErrUnknownGateway, gatewayTag)
	}

	if !adapter.VerifySignature(header.Get(adapter.SignatureHeader()), payload) {
		metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "invalid_signature").Inc()
		log.Printf("level=warn component=webhook msg=\"signature verification failed\" gateway=%s", gatewayTag)
		return ErrSignatureInvalid
	}

	event, err := adapter.ParseWebhookEvent(payload)
	if err != nil {
		if errors.Is(err, gateway.ErrUnsupportedEvent) {
			metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "ignored").Inc()
			return nil
		}
		metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "error").Inc()
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	switch event.Kind {
	case gateway.EventPaymentSucceeded:
		err = s.settleFromWebhook(ctx, adapter.Name(), event)
	case gateway.EventBankTransferCredit:
		err = s.creditFromBankTransfer(ctx, adapter.Name(), event)
	default:
		metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "ignored").Inc()
		return nil
	}

	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "error").Inc()
		return err
	}
	metrics.WebhookEventsTotal.WithLabelValues(gatewayTag, "processed").Inc()
	return nil
}

// settleFromWebhook resolves the payment record the event refers to and runs
// the shared settlement step. Replayed events find a settled record and return
// without touching the ledger.
func (s *Service) settleFromWebhook(ctx context.Context, gatewayName string, event *gateway.WebhookEvent) error {
	record, err := s.repo.FindPaymentByReference(ctx, event.Reference)
	if errors.Is(err, store.ErrPaymentNotFound) && event.GatewayReference != "" {
		record, err = s.repo.FindPaymentByGatewayReference(ctx, event.GatewayReference)
	}
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			log.Printf("level=warn component=webhook msg=\"no payment record for event\" gateway=%s reference=%s gateway_reference=%s", gatewayName, event.Reference, event.GatewayReference)
		}
		return err
	}

	if record.Status != domain.PaymentPending {
		log.Printf("level=info component=webhook msg=\"payment already settled; event ignored\" gateway=%s reference=%s status=%s", gatewayName, record.Reference, record.Status)
		return nil
	}

	_, err = s.settle(ctx, record, event.Amount, event.Channel, event.Metadata)
	return err
}

// creditFromBankTransfer applies a push credit into a reserved virtual account.
// There is no prior payment record; the destination account number attributes
// the money to a user, and the gateway's transaction reference is the
// idempotency key for the ledger credit.
func (s *Service) creditFromBankTransfer(ctx context.Context, gatewayName string, event *gateway.WebhookEvent) error {
	if event.AccountNumber == "" {
		return fmt.Errorf("%w: bank transfer event missing destination account", ErrInvalidRequest)
	}
	if event.Reference == "" {
		return fmt.Errorf("%w: bank transfer event missing reference", ErrInvalidRequest)
	}
	if event.Amount <= 0 {
		return fmt.Errorf("%w: bank transfer event has non-positive amount", ErrInvalidRequest)
	}

	account, err := s.repo.FindVirtualAccountByNumber(ctx, event.AccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrVirtualAccountNotFound) {
			log.Printf("level=warn component=webhook msg=\"push credit to unknown account\" gateway=%s account_number=%s reference=%s", gatewayName, event.AccountNumber, event.Reference)
		}
		return err
	}

	reference := gatewayName + "_" + event.Reference
	// Cheap replay check; the reference unique index remains the hard guard.
	if exists, err := s.repo.TransactionExists(ctx, reference); err == nil && exists {
		log.Printf("level=info component=webhook msg=\"bank transfer already credited; event ignored\" gateway=%s reference=%s", gatewayName, reference)
		return nil
	}
	tx, err := s.CreditWallet(ctx, account.UserID, event.Amount, reference, domain.TxTypeVirtualAccountCredit, map[string]any{
		"gateway":        gatewayName,
		"account_number": event.AccountNumber,
		"gateway_ref":    event.Reference,
	})
	if err != nil {
		// Queue the credit so a transient store failure cannot drop money.
		s.queueCreditRetry(ctx, reference, account.UserID, event.Amount, domain.TxTypeVirtualAccountCredit, err)
		return err
	}

	log.Printf("level=info component=webhook msg=\"bank transfer credit applied\" gateway=%s user_id=%s reference=%s amount=%d balance=%d", gatewayName, account.UserID, reference, event.Amount, tx.BalanceAfter)
	return nil
}
