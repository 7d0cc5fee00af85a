// Package httpapi exposes the wallet and games over HTTP for the chat bot and its operators.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Config configures the HTTP server.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Services are the domain services served by the API.
type Services struct {
	Wallet   *ledger.Service
	Roulette *roulette.Service
	Reels    *reels.Service
	Lottery  *lottery.Service
	Prizes   *prizes.Service
}

func (services Services) validate() error {
	if services.Wallet == nil || services.Roulette == nil || services.Reels == nil || services.Lottery == nil || services.Prizes == nil {
		return fmt.Errorf("%w: every service is required", ledger.ErrInvalidServiceConfig)
	}
	return nil
}

// NewRouter builds the gin engine with CORS, health check and the authenticated /api group.
func NewRouter(cfg Config, services Services, authenticator *Authenticator, logger *zap.Logger) (*gin.Engine, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if authenticator == nil {
		return nil, fmt.Errorf("%w: authenticator is nil", ledger.ErrInvalidServiceConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = shutdownTimeout
	}
	handler := &httpHandler{logger: logger, services: services, timeout: cfg.RequestTimeout}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(authenticator.Middleware())

	player := api.Group("")
	player.Use(requireRole(RoleService))
	player.GET("/accounts/:account/balance", handler.handleBalance)
	player.GET("/accounts/:account/transactions", handler.handleTransactions)
	player.POST("/accounts/:account/claims/:kind", handler.handleClaim)
	player.GET("/accounts/:account/prizes", handler.handlePrizes)
	player.GET("/scopes/:scope/round", handler.handleRoundStatus)
	player.POST("/scopes/:scope/rounds", handler.handleOpenRound)
	player.POST("/rounds/:round/bets", handler.handlePlaceBet)
	player.POST("/rounds/:round/resolve", handler.handleResolveRound)
	player.GET("/scopes/:scope/pot", handler.handlePot)
	player.POST("/scopes/:scope/spins", handler.handleSpin)
	player.GET("/lottery/:period", handler.handleLotteryStatus)
	player.POST("/lottery/:period/tickets", handler.handleBuyTickets)
	player.POST("/prizes/:prize/claim-token", handler.handleClaimToken)
	player.POST("/prizes/:prize/claims", handler.handleSubmitClaim)
	player.POST("/claims", handler.handleCompleteClaim)
	player.POST("/withdrawals", handler.handleRequestWithdrawal)

	admin := api.Group("")
	admin.Use(requireRole(RoleAdmin))
	admin.POST("/accounts/:account/adjust", handler.handleAdjust)
	admin.GET("/accounts/:account/reconcile", handler.handleReconcile)
	admin.POST("/rounds/:round/cancel", handler.handleCancelRound)
	admin.POST("/lottery/:period/draw", handler.handleDraw)
	admin.GET("/claims/next", handler.handleNextClaim)
	admin.POST("/claims/:entry/fulfill", handler.handleFulfill)
	admin.POST("/claims/:entry/fail", handler.handleFail)
	admin.GET("/withdrawals", handler.handlePendingWithdrawals)
	admin.POST("/withdrawals/:request/approve", handler.handleApproveWithdrawal)
	admin.POST("/withdrawals/:request/reject", handler.handleRejectWithdrawal)

	return router, nil
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, services Services, authenticator *Authenticator, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	router, err := NewRouter(cfg, services, authenticator, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("haus api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
