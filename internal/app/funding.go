/**
 * @description
 * This file implements funding initiation and virtual account provisioning. A
 * funding attempt creates a pending payment record before the gateway call so
 * there is always a durable anchor for later verification and webhooks.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/store"
)

// InitiateFunding starts a card funding attempt: provisions the wallet,
// records a pending payment keyed by a fresh internal reference, and asks the
// gateway for an authorization URL.
func (s *Service) InitiateFunding(ctx context.Context, userID uuid.UUID, req domain.FundWalletRequest) (*domain.FundWalletResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	adapter := s.gateways.Get(req.Gateway)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, req.Gateway)
	}

	wallet, err := s.repo.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if !wallet.CanTransact() {
		return nil, store.ErrWalletInactive
	}

	reference := newPaymentReference()
	record := &domain.PaymentRecord{
		Reference: reference,
		UserID:    userID,
		Amount:    req.Amount,
		Gateway:   adapter.Name(),
		Status:    domain.PaymentPending,
	}
	if err := s.repo.CreatePaymentRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	result, err := adapter.Initialize(ctx, gateway.InitializeRequest{
		Email:     req.Email,
		Amount:    req.Amount,
		Reference: reference,
	})
	if err != nil {
		// The pending record stays behind; verification or reconciliation will
		// resolve it if the gateway actually accepted the attempt.
		log.Printf("level=error component=funding msg=\"gateway initialize failed\" gateway=%s reference=%s err=%v", adapter.Name(), reference, err)
		return nil, err
	}

	if result.GatewayReference != "" {
		// Best-effort: webhooks also carry our own reference.
		if uerr := s.repo.UpdateGatewayReference(ctx, reference, result.GatewayReference); uerr != nil {
			log.Printf("level=warn component=funding msg=\"failed to store gateway reference\" reference=%s err=%v", reference, uerr)
		}
	}

	log.Printf("level=info component=funding msg=\"funding initialized\" gateway=%s reference=%s user_id=%s amount=%d", adapter.Name(), reference, userID, req.Amount)
	return &domain.FundWalletResponse{
		Reference:        reference,
		AuthorizationURL: result.AuthorizationURL,
		GatewayReference: result.GatewayReference,
	}, nil
}

// ReserveVirtualAccount provisions a dedicated set of bank account numbers for
// the user at a gateway supporting push credits. Idempotent per user: an
// existing virtual account is returned as-is.
func (s *Service) ReserveVirtualAccount(ctx context.Context, userID uuid.UUID, gatewayTag string, req domain.ReserveVirtualAccountRequest) (*domain.VirtualAccount, error) {
	if existing, err := s.repo.FindVirtualAccountByUserID(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrVirtualAccountNotFound) {
		return nil, err
	}

	adapter := s.gateways.Get(gatewayTag)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, gatewayTag)
	}
	reserver, ok := adapter.(gateway.AccountReserver)
	if !ok {
		return nil, fmt.Errorf("%w: gateway %q cannot reserve accounts", ErrInvalidRequest, gatewayTag)
	}

	if _, err := s.repo.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	userReference := "va_" + userID.String()
	reserved, err := reserver.ReserveAccount(ctx, userReference, gateway.InitializeRequest{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		return nil, err
	}

	account := &domain.VirtualAccount{
		UserID:           userID,
		AccountReference: reserved.AccountReference,
		Status:           "active",
	}
	for _, bank := range reserved.Banks {
		account.Banks = append(account.Banks, domain.VirtualAccountBank{
			BankName:      bank.BankName,
			AccountNumber: bank.AccountNumber,
			AccountName:   bank.AccountName,
		})
	}
	if err := s.repo.CreateVirtualAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist virtual account: %w", err)
	}

	log.Printf("level=info component=funding msg=\"virtual account reserved\" gateway=%s user_id=%s account_reference=%s banks=%d", gatewayTag, userID, account.AccountReference, len(account.Banks))
	return account, nil
}

func newPaymentReference() string {
	return "pay_" + uuid.New().String()
}
