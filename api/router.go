package api

import (
	"time"

	"pos_khqr/internal/bakong"
	"pos_khqr/internal/config"
	"pos_khqr/internal/khqr"
	"pos_khqr/internal/pos"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitRoutes registers all POS endpoints on the given Gin engine. It wires
// the store, payload generator, Bakong oracle and service together from the
// configuration, then binds each HTTP method and path to the appropriate
// handler function.
func InitRoutes(e *gin.Engine, cfg *config.Config) {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Allow local dev frontends (Live Server on 5500, Vite on 5173).
	e.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://127.0.0.1:5500",
			"http://localhost:5500",
			"http://127.0.0.1:5173",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	generator := khqr.NewGenerator(khqr.Merchant{
		BankAccount: cfg.BankAccount,
		Name:        cfg.MerchantName,
		City:        cfg.MerchantCity,
		StoreLabel:  cfg.StoreLabel,
		Phone:       cfg.Phone,
		Terminal:    cfg.Terminal,
	})

	// The token is needed only to check payments; without it the service
	// still issues QR codes but leaves sales PENDING.
	var oracle pos.StatusOracle
	if cfg.PaymentCheckEnabled() {
		oracle = bakong.NewClient(cfg.BakongAPIURL, cfg.BakongToken, 10*time.Second)
	}

	store := pos.NewStore()
	service := pos.NewService(store, generator, oracle, cfg.SaleTTLSeconds, logger)
	handler := NewPOSHandler(service, cfg.DefaultCurrency, logger)

	e.GET("/health", handler.handleHealth)
	e.POST("/pos/sale", handler.handleCreateSale)
	e.GET("/pos/sale/:id", handler.handleGetSale)
	e.GET("/pos/sale/:id/status", handler.handleSaleStatus)
	e.POST("/pos/sale/:id/mark-cancelled", handler.handleCancelSale)
}
