package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func paystackSignature(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackVerifySignature(t *testing.T) {
	client := NewPaystackClient("https://api.paystack.co", "sk_test_secret", 0)
	payload := []byte(`{"event":"charge.success","data":{"reference":"pay_1"}}`)

	tests := []struct {
		name      string
		signature string
		payload   []byte
		want      bool
	}{
		{
			name:      "valid signature",
			signature: paystackSignature("sk_test_secret", payload),
			payload:   payload,
			want:      true,
		},
		{
			name:      "valid signature with surrounding whitespace",
			signature: "  " + paystackSignature("sk_test_secret", payload) + "\n",
			payload:   payload,
			want:      true,
		},
		{
			name:      "wrong secret",
			signature: paystackSignature("sk_other", payload),
			payload:   payload,
			want:      false,
		},
		{
			name:      "tampered payload",
			signature: paystackSignature("sk_test_secret", payload),
			payload:   []byte(`{"event":"charge.success","data":{"reference":"pay_2"}}`),
			want:      false,
		},
		{
			name:      "empty signature",
			signature: "",
			payload:   payload,
			want:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.VerifySignature(tt.signature, tt.payload); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestPaystackVerifySignatureNoSecret(t *testing.T) {
	client := NewPaystackClient("https://api.paystack.co", "", 0)
	payload := []byte(`{}`)
	if client.VerifySignature(paystackSignature("", payload), payload) {
		t.Fatal("a client without a secret must reject every signature")
	}
}

func TestPaystackParseWebhookEvent(t *testing.T) {
	client := NewPaystackClient("https://api.paystack.co", "sk_test_secret", 0)

	payload := []byte(`{
		"event": "charge.success",
		"data": {"id": 4099260516, "reference": "pay_abc", "amount": 250000, "status": "success", "channel": "card"}
	}`)
	event, err := client.ParseWebhookEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != EventPaymentSucceeded {
		t.Fatalf("expected payment succeeded kind, got %s", event.Kind)
	}
	if event.Reference != "pay_abc" || event.Amount != 250000 {
		t.Fatalf("event fields wrong: %+v", event)
	}
	if event.GatewayReference != "4099260516" {
		t.Fatalf("expected stringified id as gateway reference, got %q", event.GatewayReference)
	}

	_, err = client.ParseWebhookEvent([]byte(`{"event":"transfer.success","data":{}}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected unsupported event error, got %v", err)
	}

	if _, err := client.ParseWebhookEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPaystackInitializeAndVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Fatalf("missing bearer auth, got %q", got)
		}
		switch r.URL.Path {
		case "/transaction/initialize":
			w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","reference":"pay_abc"}}`))
		case "/transaction/verify/pay_abc":
			w.Write([]byte(`{"status":true,"data":{"status":"success","amount":250000,"channel":"card","paid_at":"2026-08-30T10:00:00Z"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewPaystackClient(server.URL, "sk_test_secret", 5*time.Second)

	init, err := client.Initialize(context.Background(), InitializeRequest{
		Email:     "user@example.com",
		Amount:    250000,
		Reference: "pay_abc",
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if init.AuthorizationURL != "https://checkout.paystack.com/abc" || init.GatewayReference != "pay_abc" {
		t.Fatalf("initialize result wrong: %+v", init)
	}

	verify, err := client.Verify(context.Background(), "pay_abc")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verify.Status != VerifySuccess || verify.Amount != 250000 || verify.Channel != "card" {
		t.Fatalf("verify result wrong: %+v", verify)
	}
	if verify.PaidAt == nil {
		t.Fatal("expected paid_at parsed")
	}
}

func TestPaystackServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewPaystackClient(server.URL, "sk_test_secret", 5*time.Second)
	_, err := client.Verify(context.Background(), "pay_abc")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
}

func TestNormalizePaystackStatus(t *testing.T) {
	tests := []struct {
		in   string
		want VerifyStatus
	}{
		{in: "success", want: VerifySuccess},
		{in: "SUCCESS", want: VerifySuccess},
		{in: "failed", want: VerifyFailed},
		{in: "abandoned", want: VerifyFailed},
		{in: "reversed", want: VerifyFailed},
		{in: "ongoing", want: VerifyPending},
		{in: "", want: VerifyPending},
	}
	for _, tt := range tests {
		if got := normalizePaystackStatus(tt.in); got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
