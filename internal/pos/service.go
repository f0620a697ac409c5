package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidAmount is returned when creating a sale with a non-positive amount.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// ErrInvalidCurrency is returned when the currency is not USD or KHR.
var ErrInvalidCurrency = errors.New("currency must be USD or KHR")

// ErrSaleAlreadyPaid is returned when trying to cancel a PAID sale.
var ErrSaleAlreadyPaid = errors.New("cannot cancel a PAID sale")

// ErrPayloadGeneration is returned when the KHQR payload provider fails.
var ErrPayloadGeneration = errors.New("KHQR create failed")

// ErrOracle is returned when the payment status check against Bakong fails.
var ErrOracle = errors.New("payment check failed")

// PayloadProvider generates the KHQR payment payload for a sale and renders
// it as a QR image. The fingerprint is the MD5 checksum of the payload and is
// the key used to check payment status later.
type PayloadProvider interface {
	Generate(amount float64, currency, billNumber string) (payload, fingerprint string, err error)
	RenderPNGBase64(payload string) (string, error)
}

// StatusOracle answers whether a payment request identified by its payload
// fingerprint has been settled. It returns the remote status as a raw string.
type StatusOracle interface {
	CheckPayment(ctx context.Context, fingerprint string) (string, error)
}

// Service provides the POS sale operations on top of a Store, a payload
// provider and an optional status oracle.
type Service struct {
	store    *Store
	provider PayloadProvider
	oracle   StatusOracle // nil when no Bakong token is configured
	ttl      int64
	logger   *zap.Logger

	now func() time.Time
}

// NewService creates a new Service. The oracle may be nil, in which case
// payment reconciliation is disabled and PENDING sales stay PENDING until
// they expire or are cancelled. ttlSeconds is the sale TTL.
func NewService(store *Store, provider PayloadProvider, oracle StatusOracle, ttlSeconds int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{
		store:    store,
		provider: provider,
		oracle:   oracle,
		ttl:      ttlSeconds,
		logger:   logger,
		now:      time.Now,
	}
}

// PaymentCheckEnabled reports whether a status oracle is configured.
func (s *Service) PaymentCheckEnabled() bool {
	return s.oracle != nil
}

// CreateSale validates the request, generates the KHQR payload and stores a
// new PENDING sale. It returns the stored sale snapshot together with the
// payload rendered as a base64 PNG. On provider failure nothing is stored.
func (s *Service) CreateSale(amount float64, currency string, note, cashierID *string) (Sale, string, error) {
	if amount <= 0 {
		return Sale{}, "", ErrInvalidAmount
	}
	if !validCurrency(currency) {
		return Sale{}, "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}

	id := uuid.NewString()
	createdAt := s.now().Unix()

	// Unique bill number per sale.
	billNumber := fmt.Sprintf("POS-%d-%s", createdAt, id[:8])

	payload, fingerprint, err := s.provider.Generate(amount, currency, billNumber)
	if err != nil {
		s.logger.Error("failed to generate KHQR payload", zap.String("bill_number", billNumber), zap.Error(err))
		return Sale{}, "", fmt.Errorf("%w: %v", ErrPayloadGeneration, err)
	}

	qrPNG, err := s.provider.RenderPNGBase64(payload)
	if err != nil {
		s.logger.Error("failed to render QR image", zap.String("bill_number", billNumber), zap.Error(err))
		return Sale{}, "", fmt.Errorf("%w: %v", ErrPayloadGeneration, err)
	}

	sale := Sale{
		ID:          id,
		Amount:      amount,
		Currency:    currency,
		Note:        note,
		CashierID:   cashierID,
		BillNumber:  billNumber,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   createdAt,
		ExpiredAt:   createdAt + s.ttl,
	}

	if err := s.store.Insert(sale); err != nil {
		s.logger.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.Error(err))
		return Sale{}, "", fmt.Errorf("failed to save sale: %w", err)
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.Float64("amount", amount),
		zap.String("currency", currency),
		zap.String("bill_number", billNumber),
	)
	return sale, qrPNG, nil
}

// GetSale returns the current snapshot of a sale, refreshing its expiry
// first so polling clients never see a stale PENDING past its TTL.
func (s *Service) GetSale(id string) (Sale, error) {
	return s.store.Mutate(id, func(sale *Sale) error {
		sale.refreshExpiry(s.now().Unix())
		return nil
	})
}

// PollStatus refreshes expiry and, if the sale is still PENDING and an
// oracle is configured, reconciles its status against the oracle. Terminal
// sales return immediately without contacting the oracle. An oracle failure
// is surfaced as ErrOracle and leaves the sale untouched.
func (s *Service) PollStatus(ctx context.Context, id string) (Sale, error) {
	return s.store.Mutate(id, func(sale *Sale) error {
		sale.refreshExpiry(s.now().Unix())
		if sale.Status != StatusPending {
			return nil
		}
		if s.oracle == nil {
			// No token => cannot verify payment, still PENDING.
			return nil
		}

		raw, err := s.oracle.CheckPayment(ctx, sale.Fingerprint)
		if err != nil {
			s.logger.Error("payment check failed", zap.String("sale_id", sale.ID), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrOracle, err)
		}

		if isPaidResponse(raw) {
			sale.markPaid(s.now().Unix())
			s.logger.Info("sale paid", zap.String("sale_id", sale.ID), zap.String("md5", sale.Fingerprint))
		}
		// Anything else (UNPAID, NOT_FOUND, ...) keeps the sale PENDING.
		return nil
	})
}

// CancelSale cancels a sale. PENDING and EXPIRED sales become CANCELLED,
// cancelling an already-CANCELLED sale succeeds again, and a PAID sale is
// rejected with ErrSaleAlreadyPaid.
func (s *Service) CancelSale(id string) (Sale, error) {
	sale, err := s.store.Mutate(id, func(sale *Sale) error {
		sale.refreshExpiry(s.now().Unix())
		return sale.cancel()
	})
	if err != nil {
		return sale, err
	}
	s.logger.Info("sale cancelled", zap.String("sale_id", sale.ID))
	return sale, nil
}
