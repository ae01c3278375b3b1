package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"rifa-service/internal/apperr"
	"rifa-service/internal/service"
	"rifa-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// Handler contains HTTP handlers
type Handler struct {
	reservations *service.ReservationService
	catalog      *service.CatalogService
	deposits     *service.DepositService
	webhooks     *service.WebhookService
	campaigns    *service.CampaignService
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	reservations *service.ReservationService,
	catalog *service.CatalogService,
	deposits *service.DepositService,
	webhooks *service.WebhookService,
	campaigns *service.CampaignService,
) *Handler {
	return &Handler{
		reservations: reservations,
		catalog:      catalog,
		deposits:     deposits,
		webhooks:     webhooks,
		campaigns:    campaigns,
		logger:       util.NamedLogger("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/horsepay", h.horsePayWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/numbers/window", h.getWindow)
		v1.POST("/numbers/random", h.pickRandom)

		authed := v1.Group("", requireUser())
		{
			authed.POST("/numbers/reserve", h.reserveNumbers)
			authed.GET("/numbers/reservation", h.getReservation)
			authed.POST("/deposits", h.createDeposit)
			authed.POST("/withdrawals", h.createWithdrawal)
			authed.GET("/balance", h.getBalance)
		}

		admin := v1.Group("/admin", requireUser(), requireAdmin())
		{
			admin.PUT("/campaign", h.upsertCampaign)
			admin.GET("/dashboard", h.getDashboard)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type reserveRequest struct {
	Numbers []int64 `json:"numbers" binding:"required"`
}

// reserveNumbers handles number reservation
func (h *Handler) reserveNumbers(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.InvalidArgument, "Corpo da requisição inválido."))
		return
	}

	resp, err := h.reservations.Reserve(c.Request.Context(), userID(c), req.Numbers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getReservation returns the caller's active reservation, if any
func (h *Handler) getReservation(c *gin.Context) {
	reservation, err := h.reservations.ActiveReservation(c.Request.Context(), userID(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	if reservation == nil {
		respondError(c, apperr.New(apperr.NotFound, "Nenhuma reserva ativa."))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"numbers":     []int64(reservation.Numbers),
		"campaignId":  reservation.CampaignID,
		"expiresAtMs": reservation.ExpiresAt.UnixMilli(),
	})
}

// getWindow handles catalog window pagination
func (h *Handler) getWindow(c *gin.Context) {
	campaignID := c.Query("campaignId")
	pageSize, _ := strconv.ParseInt(c.DefaultQuery("pageSize", "0"), 10, 64)

	var pageStart *int64
	if raw := c.Query("pageStart"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperr.New(apperr.InvalidArgument, "Parâmetro pageStart inválido."))
			return
		}
		pageStart = &n
	}

	resp, err := h.catalog.GetWindow(c.Request.Context(), campaignID, pageSize, pageStart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type randomPickRequest struct {
	CampaignID string  `json:"campaignId,omitempty"`
	Quantity   int64   `json:"quantity" binding:"required"`
	Exclude    []int64 `json:"excludeNumbers,omitempty"`
}

// pickRandom handles randomized number selection
func (h *Handler) pickRandom(c *gin.Context) {
	var req randomPickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.InvalidArgument, "Corpo da requisição inválido."))
		return
	}

	resp, err := h.catalog.PickRandom(c.Request.Context(), req.CampaignID, req.Quantity, req.Exclude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// createDeposit handles PIX deposit creation
func (h *Handler) createDeposit(c *gin.Context) {
	var req service.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.InvalidArgument, "Corpo da requisição inválido."))
		return
	}

	resp, err := h.deposits.CreateDeposit(c.Request.Context(), userID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

type withdrawalRequest struct {
	AmountCents int64  `json:"amount" binding:"required"`
	PixKey      string `json:"pixKey" binding:"required"`
	PixType     string `json:"pixType,omitempty"`
}

// createWithdrawal handles gateway withdrawal requests
func (h *Handler) createWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.InvalidArgument, "Corpo da requisição inválido."))
		return
	}

	resp, err := h.deposits.Withdraw(c.Request.Context(), userID(c), req.AmountCents, req.PixKey, req.PixType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getBalance handles gateway balance queries
func (h *Handler) getBalance(c *gin.Context) {
	resp, err := h.deposits.Balance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// upsertCampaign handles admin campaign settings
func (h *Handler) upsertCampaign(c *gin.Context) {
	var req service.UpsertCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.InvalidArgument, "Corpo da requisição inválido."))
		return
	}

	campaign, err := h.campaigns.UpsertCampaignSettings(c.Request.Context(), userID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// getDashboard handles the admin dashboard summary
func (h *Handler) getDashboard(c *gin.Context) {
	resp, err := h.campaigns.DashboardSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// horsePayWebhook ingests gateway notifications. The provider retries on
// non-2xx, so once the token checks out every delivery is acknowledged;
// reconciliation failures are logged and resolved by the next retry.
func (h *Handler) horsePayWebhook(c *gin.Context) {
	token := c.GetHeader("X-Webhook-Token")
	if token == "" {
		token = c.Query("token")
	}
	if !h.webhooks.TokenValid(token) {
		// Acknowledged but not processed: a 4xx would make the provider
		// retry a delivery that will never become valid.
		h.logger.Warn("Webhook with invalid token")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.webhooks.Process(c.Request.Context(), body); err != nil {
		h.logger.Error("Webhook processing failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// requireUser resolves the caller identity set by the edge proxy.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-User-Id")
		if uid == "" {
			respondError(c, apperr.New(apperr.Unauthenticated, "Autenticação necessária."))
			c.Abort()
			return
		}
		c.Set("userID", uid)
		c.Set("userRole", c.GetHeader("X-User-Role"))
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("userRole") != "admin" {
			respondError(c, apperr.New(apperr.PermissionDenied, "Acesso restrito a administradores."))
			c.Abort()
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}

// respondError serializes application errors with their mapped HTTP
// status; everything else collapses to a generic 500 message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(apperr.HTTPStatus(kind), gin.H{
		"error": gin.H{
			"kind":    string(kind),
			"message": apperr.MessageOf(err),
		},
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
