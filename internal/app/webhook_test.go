package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/gateway"
)

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	repo := newFakeRepo()
	adapter := &stubAdapter{name: "paystack", sigOK: false}
	svc := newTestService(repo, adapter)

	err := svc.HandleWebhook(context.Background(), "paystack", http.Header{}, []byte(`{}`))
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	err := svc.HandleWebhook(context.Background(), "stripe", http.Header{}, []byte(`{}`))
	if !errors.Is(err, ErrUnknownGateway) {
		t.Fatalf("expected unknown gateway error, got %v", err)
	}
}

func TestHandleWebhookIgnoresUnsupportedEvents(t *testing.T) {
	repo := newFakeRepo()
	adapter := &stubAdapter{name: "paystack", sigOK: true, parseErr: gateway.ErrUnsupportedEvent}
	svc := newTestService(repo, adapter)

	if err := svc.HandleWebhook(context.Background(), "paystack", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("unsupported events must be acknowledged quietly, got %v", err)
	}
}

func TestHandleWebhookSettlesPendingPayment(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Currency: "NGN", Status: domain.WalletActive}
	payment := pendingPayment(repo, userID, 250000)

	adapter := &stubAdapter{
		name:  "paystack",
		sigOK: true,
		event: &gateway.WebhookEvent{
			Kind:      gateway.EventPaymentSucceeded,
			Reference: payment.Reference,
			Amount:    250000,
			Status:    gateway.VerifySuccess,
			Channel:   "card",
		},
	}
	svc := newTestService(repo, adapter)

	if err := svc.HandleWebhook(context.Background(), "paystack", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.wallets[userID].Balance != 250000 {
		t.Fatalf("expected wallet credited, balance=%d", repo.wallets[userID].Balance)
	}
	if !repo.payments[payment.Reference].WalletCredited {
		t.Fatal("expected credited flag set")
	}
}

func TestHandleWebhookReplayDoesNotDoubleCredit(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Currency: "NGN", Status: domain.WalletActive}
	payment := pendingPayment(repo, userID, 250000)

	adapter := &stubAdapter{
		name:  "paystack",
		sigOK: true,
		event: &gateway.WebhookEvent{
			Kind:      gateway.EventPaymentSucceeded,
			Reference: payment.Reference,
			Amount:    250000,
			Status:    gateway.VerifySuccess,
		},
	}
	svc := newTestService(repo, adapter)

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(context.Background(), "paystack", http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("replay %d failed: %v", i, err)
		}
	}
	if repo.wallets[userID].Balance != 250000 {
		t.Fatalf("replays must credit exactly once, balance=%d", repo.wallets[userID].Balance)
	}
}

func TestHandleWebhookBankTransferCredit(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Currency: "NGN", Status: domain.WalletActive}
	repo.accounts["3000112233"] = &domain.VirtualAccount{
		ID:     uuid.New(),
		UserID: userID,
		Status: "active",
	}

	adapter := &stubAdapter{
		name:  "monnify",
		sigOK: true,
		event: &gateway.WebhookEvent{
			Kind:          gateway.EventBankTransferCredit,
			Reference:     "MNFY|TX|001",
			Amount:        500000,
			Status:        gateway.VerifySuccess,
			AccountNumber: "3000112233",
		},
	}
	svc := newTestService(repo, adapter)

	if err := svc.HandleWebhook(context.Background(), "monnify", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.wallets[userID].Balance != 500000 {
		t.Fatalf("expected push credit applied, balance=%d", repo.wallets[userID].Balance)
	}

	// Same gateway reference again is a replay.
	if err := svc.HandleWebhook(context.Background(), "monnify", http.Header{}, []byte(`{}`)); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if repo.wallets[userID].Balance != 500000 {
		t.Fatalf("replayed push credit double-applied, balance=%d", repo.wallets[userID].Balance)
	}
}

func TestHandleWebhookBankTransferUnknownAccount(t *testing.T) {
	repo := newFakeRepo()
	adapter := &stubAdapter{
		name:  "monnify",
		sigOK: true,
		event: &gateway.WebhookEvent{
			Kind:          gateway.EventBankTransferCredit,
			Reference:     "MNFY|TX|002",
			Amount:        500000,
			AccountNumber: "9999999999",
		},
	}
	svc := newTestService(repo, adapter)

	if err := svc.HandleWebhook(context.Background(), "monnify", http.Header{}, []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown destination account")
	}
}
