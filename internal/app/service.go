/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct orchestrates all wallet operations, coordinating between the
 * database repository, the payment gateway adapters, and the message broker.
 *
 * Key features:
 * - Implements the main use cases: funding initiation, payment verification,
 *   webhook settlement, ledger credits and debits.
 * - Ensures transactional integrity through the repository's atomic ledger step.
 * - Publishes settlement events to RabbitMQ for asynchronous processing by
 *   other services.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/gateway: Internal packages.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"errors"

	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/rabbitmq"
)

// Sentinel errors surfaced by the service layer on top of the store's taxonomy.
var (
	ErrUnknownGateway   = errors.New("unknown payment gateway")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrAlreadySettled   = errors.New("payment already settled")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// Config carries the tunables the service needs from the environment.
type Config struct {
	AmountToleranceKobo    int64
	CreditRetryMaxAttempts int
	CreditRetryBase        int // seconds
	ReconcileWindowHours   int
}

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo          store.Repository
	gateways      gateway.Registry
	eventProducer rabbitmq.Publisher
	cfg           Config
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, gateways gateway.Registry, producer rabbitmq.Publisher, cfg Config) *Service {
	if cfg.AmountToleranceKobo < 0 {
		cfg.AmountToleranceKobo = 0
	}
	if cfg.CreditRetryMaxAttempts <= 0 {
		cfg.CreditRetryMaxAttempts = 8
	}
	if cfg.CreditRetryBase <= 0 {
		cfg.CreditRetryBase = 30
	}
	if cfg.ReconcileWindowHours <= 0 {
		cfg.ReconcileWindowHours = 24
	}
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:          repo,
		gateways:      gateways,
		eventProducer: producer,
		cfg:           cfg,
	}
}

// amountWithinTolerance reports whether the gateway-reported amount agrees with
// the recorded amount. The tolerance absorbs sub-naira rounding differences
// between gateways; it is the single place this comparison happens.
func (s *Service) amountWithinTolerance(expected, actual int64) bool {
	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.cfg.AmountToleranceKobo
}
