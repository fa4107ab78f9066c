package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
)

func monnifySignature(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestMonnifyVerifySignature(t *testing.T) {
	client := NewMonnifyClient("https://api.monnify.com", "MK_TEST", "client_secret", "100693", 0)
	payload := []byte(`{"eventType":"SUCCESSFUL_TRANSACTION"}`)

	if !client.VerifySignature(monnifySignature("client_secret", payload), payload) {
		t.Fatal("expected valid signature accepted")
	}
	if client.VerifySignature(monnifySignature("wrong_secret", payload), payload) {
		t.Fatal("expected wrong-key signature rejected")
	}
	if client.VerifySignature("", payload) {
		t.Fatal("expected empty signature rejected")
	}
}

func TestMonnifyParseWebhookCheckoutCompletion(t *testing.T) {
	client := NewMonnifyClient("https://api.monnify.com", "MK_TEST", "client_secret", "100693", 0)

	payload := []byte(`{
		"eventType": "SUCCESSFUL_TRANSACTION",
		"eventData": {
			"paymentReference": "pay_xyz",
			"transactionReference": "MNFY|01|20260830",
			"amountPaid": "1500.00",
			"paymentMethod": "CARD",
			"paymentStatus": "PAID",
			"product": {"type": "WEB_SDK", "reference": "pay_xyz"}
		}
	}`)
	event, err := client.ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != EventPaymentSucceeded {
		t.Fatalf("expected payment succeeded, got %s", event.Kind)
	}
	if event.Reference != "pay_xyz" {
		t.Fatalf("expected our payment reference, got %q", event.Reference)
	}
	if event.Amount != 150000 {
		t.Fatalf("expected 1500 naira as 150000 kobo, got %d", event.Amount)
	}
	if event.Status != VerifySuccess {
		t.Fatalf("expected success status, got %s", event.Status)
	}
}

func TestMonnifyParseWebhookReservedAccountCredit(t *testing.T) {
	client := NewMonnifyClient("https://api.monnify.com", "MK_TEST", "client_secret", "100693", 0)

	payload := []byte(`{
		"eventType": "SUCCESSFUL_TRANSACTION",
		"eventData": {
			"paymentReference": "",
			"transactionReference": "MNFY|02|20260830",
			"amountPaid": "5000.50",
			"paymentMethod": "ACCOUNT_TRANSFER",
			"paymentStatus": "PAID",
			"product": {"type": "RESERVED_ACCOUNT", "reference": "va_user1"},
			"destinationAccountInformation": {"accountNumber": "3000112233", "bankName": "Wema Bank"}
		}
	}`)
	event, err := client.ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != EventBankTransferCredit {
		t.Fatalf("expected bank transfer credit, got %s", event.Kind)
	}
	if event.AccountNumber != "3000112233" {
		t.Fatalf("expected destination account number, got %q", event.AccountNumber)
	}
	// With no payment reference the vendor transaction reference becomes the
	// idempotency key.
	if event.Reference != "MNFY|02|20260830" {
		t.Fatalf("expected fallback reference, got %q", event.Reference)
	}
	if event.Amount != 500050 {
		t.Fatalf("expected 5000.50 naira as 500050 kobo, got %d", event.Amount)
	}
}

func TestMonnifyParseWebhookUnsupportedEvent(t *testing.T) {
	client := NewMonnifyClient("https://api.monnify.com", "MK_TEST", "client_secret", "100693", 0)

	_, err := client.ParseWebhookEvent([]byte(`{"eventType":"SETTLEMENT","eventData":{}}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected unsupported event error, got %v", err)
	}
}

func TestKoboFromNaira(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{name: "whole naira", in: "1000", want: 100000},
		{name: "two decimals", in: "1000.00", want: 100000},
		{name: "with kobo", in: "1000.55", want: 100055},
		{name: "rounding up", in: "0.999", want: 100},
		{name: "small", in: "0.01", want: 1},
		{name: "zero", in: "0", want: 0},
		{name: "garbage", in: "abc", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := koboFromNaira(json.Number(tt.in)); got != tt.want {
				t.Fatalf("%q: expected %d, got %d", tt.in, tt.want, got)
			}
		})
	}
}

func TestNormalizeMonnifyStatus(t *testing.T) {
	tests := []struct {
		in   string
		want VerifyStatus
	}{
		{in: "PAID", want: VerifySuccess},
		{in: "paid", want: VerifySuccess},
		{in: "FAILED", want: VerifyFailed},
		{in: "EXPIRED", want: VerifyFailed},
		{in: "CANCELLED", want: VerifyFailed},
		{in: "PENDING", want: VerifyPending},
		{in: "", want: VerifyPending},
	}
	for _, tt := range tests {
		if got := normalizeMonnifyStatus(tt.in); got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
