package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/store"
)

// webhookRepoStub panics on any store access; the cases below must be decided
// before the repository is ever touched.
type webhookRepoStub struct {
	store.Repository
}

// rejectingAdapter refuses every signature.
type rejectingAdapter struct{}

func (a *rejectingAdapter) Name() string            { return "paystack" }
func (a *rejectingAdapter) SignatureHeader() string { return "x-paystack-signature" }
func (a *rejectingAdapter) VerifySignature(signatureHeader string, payload []byte) bool {
	return false
}
func (a *rejectingAdapter) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	return nil, errors.New("not used")
}
func (a *rejectingAdapter) Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error) {
	return nil, errors.New("not used")
}
func (a *rejectingAdapter) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	return nil, errors.New("not used")
}

func newWebhookTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := app.NewService(&webhookRepoStub{}, gateway.Registry{"paystack": &rejectingAdapter{}}, nil, app.Config{})
	return WalletRoutes(NewWalletHandlers(svc), nil, RouterConfig{
		JWTSecret:      "test-secret",
		InternalAPIKey: "internal-key",
	})
}

// Gateways only interpret non-200 as "retry me", so the webhook endpoint
// acknowledges everything, including requests it refuses to process.
func TestWebhookEndpointAlwaysAcknowledges(t *testing.T) {
	router := newWebhookTestRouter(t)

	tests := []struct {
		name      string
		path      string
		signature string
	}{
		{name: "bad signature", path: "/wallet/webhook/paystack", signature: "bogus"},
		{name: "missing signature", path: "/wallet/webhook/paystack", signature: ""},
		{name: "unknown gateway", path: "/wallet/webhook/stripe", signature: "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"event":"charge.success"}`))
			if tt.signature != "" {
				req.Header.Set("x-paystack-signature", tt.signature)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body["status"] != "ok" {
				t.Fatalf("expected status ok body, got %v", body)
			}
		})
	}
}
