package api

import (
	"errors"
	"net/http"

	"pos_khqr/internal/pos"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// posHandler holds the POS service and implements HTTP handlers for sale
// operations.
type posHandler struct {
	service         *pos.Service
	defaultCurrency string
	logger          *zap.Logger
}

// NewPOSHandler creates a new POS handler.
func NewPOSHandler(service *pos.Service, defaultCurrency string, logger *zap.Logger) *posHandler {
	return &posHandler{
		service:         service,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

func (h *posHandler) handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"ok":                    true,
		"payment_check_enabled": h.service.PaymentCheckEnabled(),
	})
}

// handleCreateSale handles the POST /pos/sale endpoint.
func (h *posHandler) handleCreateSale(ctx *gin.Context) {
	var req struct {
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
		Note      *string `json:"note"`
		CashierID *string `json:"cashier_id"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Currency == "" {
		req.Currency = h.defaultCurrency
	}

	sale, qrPNG, err := h.service.CreateSale(req.Amount, req.Currency, req.Note, req.CashierID)
	if err != nil {
		switch {
		case errors.Is(err, pos.ErrInvalidAmount), errors.Is(err, pos.ErrInvalidCurrency):
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to create sale", zap.Float64("amount", req.Amount), zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"sale_id":       sale.ID,
		"amount":        sale.Amount,
		"currency":      sale.Currency,
		"md5":           sale.Fingerprint,
		"qr_png_base64": qrPNG,
		"status":        sale.Status,
		"created_at":    sale.CreatedAt,
		"expired_at":    sale.ExpiredAt,
	})
}

// handleGetSale handles the GET /pos/sale/:id endpoint and returns the full
// sale record.
func (h *posHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.service.GetSale(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, pos.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		h.logger.Error("failed to get sale", zap.String("sale_id", ctx.Param("id")), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

// handleSaleStatus handles the GET /pos/sale/:id/status endpoint, refreshing
// expiry and reconciling a PENDING sale against Bakong.
func (h *posHandler) handleSaleStatus(ctx *gin.Context) {
	sale, err := h.service.PollStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, pos.ErrNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
		case errors.Is(err, pos.ErrOracle):
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to poll sale status", zap.String("sale_id", ctx.Param("id")), zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"sale_id": sale.ID,
		"status":  sale.Status,
		"md5":     sale.Fingerprint,
	})
}

// handleCancelSale handles the POST /pos/sale/:id/mark-cancelled endpoint.
func (h *posHandler) handleCancelSale(ctx *gin.Context) {
	sale, err := h.service.CancelSale(ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, pos.ErrNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
		case errors.Is(err, pos.ErrSaleAlreadyPaid):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "cannot cancel a PAID sale"})
		default:
			h.logger.Error("failed to cancel sale", zap.String("sale_id", ctx.Param("id")), zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"sale_id": sale.ID,
		"status":  sale.Status,
	})
}
