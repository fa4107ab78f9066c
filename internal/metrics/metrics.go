/**
 * @description
 * This package defines the Prometheus metrics exported by the wallet-service
 * and the handler for the /metrics endpoint. Counters cover the settlement
 * pipeline end to end: webhook intake, credits, retries, and detected drift.
 *
 * @dependencies
 * - github.com/prometheus/client_golang: Prometheus instrumentation library.
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_webhook_events_total",
			Help: "Webhook events received, by gateway and outcome",
		},
		[]string{"gateway", "outcome"}, // processed|ignored|invalid_signature|error
	)

	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_settlements_total",
			Help: "Payment settlements, by gateway and result",
		},
		[]string{"gateway", "result"}, // success|failed|amount_mismatch
	)

	CreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_credits_total",
			Help: "Wallet ledger credits applied, by transaction type",
		},
		[]string{"type"},
	)

	CreditRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_credit_retries_total",
			Help: "Credit attempts pushed to the durable retry queue",
		},
	)

	CreditRetriesExhausted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wallet_credit_retries_exhausted",
			Help: "Credit retries that burned their attempt budget and await manual review",
		},
	)

	BalanceDriftDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_balance_drift_detected_total",
			Help: "Audits where the stored balance disagreed with the transaction log",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(CreditsTotal)
	prometheus.MustRegister(CreditRetriesTotal)
	prometheus.MustRegister(CreditRetriesExhausted)
	prometheus.MustRegister(BalanceDriftDetected)
}
