/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/internal/store"
)

// maxWebhookBody bounds webhook payload reads. Gateway payloads are a few KB;
// anything larger is not a payment event.
const maxWebhookBody = 1 << 20

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// FundWalletHandler initializes a funding attempt at a payment gateway.
func (h *WalletHandlers) FundWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.FundWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.InitiateFunding(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRequest), errors.Is(err, app.ErrUnknownGateway):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrWalletInactive):
			h.writeError(w, http.StatusForbidden, "Wallet is not active")
		default:
			log.Printf("level=error component=api endpoint=fund_wallet msg=\"funding initiation failed\" user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusBadGateway, "Could not initialize payment")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// VerifyPaymentHandler queries the gateway for a payment's status and settles it.
func (h *WalletHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.writeError(w, http.StatusBadRequest, "Payment reference is required")
		return
	}

	result, err := h.service.VerifyAndSettle(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPaymentNotFound):
			h.writeError(w, http.StatusNotFound, "Payment not found")
		default:
			log.Printf("level=error component=api endpoint=verify_payment msg=\"verification failed\" user_id=%s reference=%s err=%v", userID, reference, err)
			h.writeError(w, http.StatusBadGateway, "Could not verify payment")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetBalanceHandler returns the authenticated user's wallet balance.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_balance msg=\"balance read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not read balance")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// ListTransactionsHandler returns the authenticated user's transaction history.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	opts := domain.TransactionListOptions{
		Type: strings.TrimSpace(r.URL.Query().Get("type")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions msg=\"history read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not list transactions")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// ReserveVirtualAccountHandler provisions dedicated bank account numbers for
// the user so they can fund by bank transfer.
func (h *WalletHandlers) ReserveVirtualAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.ReserveVirtualAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.ReserveVirtualAccount(r.Context(), userID, "monnify", req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRequest), errors.Is(err, app.ErrUnknownGateway):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=reserve_virtual_account msg=\"reservation failed\" user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusBadGateway, "Could not reserve virtual account")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// WebhookHandler receives gateway notifications. The response is 200 JSON for
// every request regardless of processing outcome: a non-200 only signals the
// gateway to retry, retries of a poison event would never succeed, and an
// error status leaks which probes hit a real endpoint. Failures are logged and
// repaired by reconciliation.
func (h *WalletHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	gatewayTag := chi.URLParam(r, "gateway")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.service.HandleWebhook(r.Context(), gatewayTag, r.Header, payload); err != nil {
		switch {
		case errors.Is(err, app.ErrSignatureInvalid):
			log.Printf("level=warn component=api endpoint=webhook msg=\"webhook signature rejected\" gateway=%s", gatewayTag)
		case errors.Is(err, app.ErrUnknownGateway):
			log.Printf("level=warn component=api endpoint=webhook msg=\"webhook for unknown gateway\" gateway=%s", gatewayTag)
		default:
			log.Printf("level=error component=api endpoint=webhook msg=\"webhook processing failed\" gateway=%s err=%v", gatewayTag, err)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AuditUserHandler runs a balance audit for one user. Internal only.
func (h *WalletHandlers) AuditUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	report, err := h.service.AuditUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrBalanceDrift) {
			// The report is still the payload; drift is flagged inside it.
			h.writeJSON(w, http.StatusOK, report)
			return
		}
		if errors.Is(err, store.ErrWalletNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=audit_user msg=\"audit failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Audit failed")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// ReconcileHandler triggers a reconciliation sweep. Internal only.
func (h *WalletHandlers) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ReconcileWindow(r.Context(), 0, 100)
	if err != nil {
		log.Printf("level=error component=api endpoint=reconcile msg=\"sweep failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// RetryCreditsHandler drains the credit retry queue. Internal only.
func (h *WalletHandlers) RetryCreditsHandler(w http.ResponseWriter, r *http.Request) {
	settled, err := h.service.RetryFailedCredits(r.Context(), 100)
	if err != nil {
		log.Printf("level=error component=api endpoint=retry_credits msg=\"drain failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Retry drain failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"settled": settled})
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
