package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

func TestCreditWalletValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	userID := uuid.New()

	tests := []struct {
		name      string
		amount    int64
		reference string
	}{
		{name: "zero amount", amount: 0, reference: "ref"},
		{name: "negative amount", amount: -100, reference: "ref"},
		{name: "missing reference", amount: 100, reference: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreditWallet(context.Background(), userID, tt.amount, tt.reference, domain.TxTypeDeposit, nil)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected invalid request, got %v", err)
			}
		})
	}
}

func TestCreditWalletDuplicateReferenceIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	svc := newTestService(repo, nil)

	first, err := svc.CreditWallet(context.Background(), userID, 10000, "ref_dup", domain.TxTypeDeposit, nil)
	if err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	second, err := svc.CreditWallet(context.Background(), userID, 10000, "ref_dup", domain.TxTypeDeposit, nil)
	if err != nil {
		t.Fatalf("replayed credit must succeed, got %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("replay must return the original transaction")
	}
	if repo.wallets[userID].Balance != 10000 {
		t.Fatalf("balance credited twice: %d", repo.wallets[userID].Balance)
	}
}

func TestCreditWalletConcurrentSameReferenceCreditsOnce(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	svc := newTestService(repo, nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreditWallet(context.Background(), userID, 10000, "ref_race", domain.TxTypeDeposit, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if repo.wallets[userID].Balance != 10000 {
		t.Fatalf("expected exactly one credit, balance=%d", repo.wallets[userID].Balance)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(repo.transactions))
	}
}

func TestDebitWalletInsufficientFunds(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: 5000, Currency: "NGN", Status: domain.WalletActive}
	svc := newTestService(repo, nil)

	_, err := svc.DebitWallet(context.Background(), userID, 6000, "ref_debit", domain.TxTypeBillPayment, nil)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if repo.wallets[userID].Balance != 5000 {
		t.Fatalf("failed debit must not move money: %d", repo.wallets[userID].Balance)
	}
}

func TestDebitWalletInactiveWallet(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: 50000, Currency: "NGN", Status: domain.WalletSuspended}
	svc := newTestService(repo, nil)

	_, err := svc.DebitWallet(context.Background(), userID, 1000, "ref_debit", domain.TxTypeBillPayment, nil)
	if !errors.Is(err, store.ErrWalletInactive) {
		t.Fatalf("expected inactive wallet error, got %v", err)
	}
}

func TestDebitWalletRecordsChainedBalances(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	repo.wallets[userID] = &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: 50000, Currency: "NGN", Status: domain.WalletActive}
	svc := newTestService(repo, nil)

	tx, err := svc.DebitWallet(context.Background(), userID, 20000, "ref_debit", domain.TxTypeBillPayment, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Amount != -20000 {
		t.Fatalf("debit amount must be negative in the log, got %d", tx.Amount)
	}
	if tx.BalanceBefore != 50000 || tx.BalanceAfter != 30000 {
		t.Fatalf("balance chain wrong: before=%d after=%d", tx.BalanceBefore, tx.BalanceAfter)
	}
}

func TestAmountWithinTolerance(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	tests := []struct {
		name     string
		expected int64
		actual   int64
		want     bool
	}{
		{name: "exact", expected: 100000, actual: 100000, want: true},
		{name: "at tolerance under", expected: 100000, actual: 99900, want: true},
		{name: "at tolerance over", expected: 100000, actual: 100100, want: true},
		{name: "past tolerance", expected: 100000, actual: 99899, want: false},
		{name: "wildly off", expected: 100000, actual: 1000, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.amountWithinTolerance(tt.expected, tt.actual); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}
