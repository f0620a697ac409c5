package pos

import "strings"

// Status is the lifecycle state of a sale. PENDING is the only non-terminal
// state; PAID, CANCELLED and EXPIRED are never left once entered.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Sale represents a single KHQR payment request issued by the POS.
type Sale struct {
	ID          string  `json:"sale_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Note        *string `json:"note"`
	CashierID   *string `json:"cashier_id"`
	BillNumber  string  `json:"bill_number"`
	Fingerprint string  `json:"md5"`
	Status      Status  `json:"status"`
	CreatedAt   int64   `json:"created_at"`
	ExpiredAt   int64   `json:"expired_at"`
	PaidAt      *int64  `json:"paid_at"`
}

// refreshExpiry marks the sale EXPIRED if its TTL has passed. It only ever
// touches PENDING sales, so running it repeatedly is harmless.
func (s *Sale) refreshExpiry(now int64) {
	if s.Status == StatusPending && now > s.ExpiredAt {
		s.Status = StatusExpired
	}
}

// cancel transitions the sale to CANCELLED. A PAID sale can never be
// cancelled; cancelling a sale that is already CANCELLED succeeds again.
func (s *Sale) cancel() error {
	if s.Status == StatusPaid {
		return ErrSaleAlreadyPaid
	}
	s.Status = StatusCancelled
	return nil
}

// markPaid transitions a PENDING sale to PAID and records the payment time.
func (s *Sale) markPaid(now int64) {
	if s.Status != StatusPending {
		return
	}
	s.Status = StatusPaid
	paidAt := now
	s.PaidAt = &paidAt
}

// validCurrency reports whether the currency is one the scheme supports.
func validCurrency(currency string) bool {
	return currency == "USD" || currency == "KHR"
}

// isPaidResponse maps a raw oracle response string to a paid decision.
// The response is trimmed of whitespace and surrounding quotes and
// upper-cased, then compared for equality against the accepted set.
// A substring check would be wrong here: "UNPAID" contains "PAID".
func isPaidResponse(raw string) bool {
	normalized := strings.ToUpper(strings.Trim(strings.TrimSpace(raw), `"'`))
	switch normalized {
	case "PAID", "SUCCESS", "SUCCESSFUL", "COMPLETED":
		return true
	}
	return false
}
