package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutController
	surface  *service.SurfaceRegistry
	orders   service.OrderStore
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutController, surface *service.SurfaceRegistry, orders service.OrderStore) *Handler {
	return &Handler{
		checkout: checkout,
		surface:  surface,
		orders:   orders,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.beginCheckout)
		v1.GET("/checkout/collect/:gatewayOrderId", h.getPendingCollection)
		v1.POST("/checkout/collect/:gatewayOrderId", h.deliverCollection)
		v1.GET("/orders/:number", h.getOrder)
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

// beginCheckout runs one checkout attempt. For gateway payments the
// request suspends until the collection callback settles it.
func (h *Handler) beginCheckout(c *gin.Context) {
	var req service.CheckoutRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.checkout.BeginCheckout(c.Request.Context(), &req)
	if err != nil {
		h.renderCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "confirmed",
		"order":  order,
	})
}

// getPendingCollection hands the client surface what it needs to open
// the hosted payment UI for a pending gateway transaction.
func (h *Handler) getPendingCollection(c *gin.Context) {
	req, ok := h.surface.Pending(c.Param("gatewayOrderId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No pending collection for this transaction",
		})
		return
	}

	c.JSON(http.StatusOK, req)
}

// deliverCollection settles a suspended gateway collection with the
// surface's terminal outcome.
func (h *Handler) deliverCollection(c *gin.Context) {
	var resp service.CollectResponse
	if err := c.ShouldBindJSON(&resp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid callback body",
			"details": err.Error(),
		})
		return
	}

	switch resp.Outcome {
	case service.CollectOutcomeSuccess, service.CollectOutcomeFailure, service.CollectOutcomeDismissed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown outcome"})
		return
	}

	if err := h.surface.Deliver(c.Param("gatewayOrderId"), &resp); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "delivered"})
}

// getOrder handles get order by number
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// renderCheckoutError maps the checkout failure taxonomy onto HTTP. A
// user dismissal is not an error; it returns the buyer to method
// selection.
func (h *Handler) renderCheckoutError(c *gin.Context, err error) {
	var cerr *service.CheckoutError
	if !errors.As(err, &cerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed"})
		return
	}

	if cerr.Code == service.CodePaymentCancelled {
		c.JSON(http.StatusOK, gin.H{
			"status": "cancelled",
			"code":   cerr.Code,
		})
		return
	}

	status := http.StatusInternalServerError
	switch cerr.Code {
	case service.CodeValidationError, service.CodeSignatureVerification:
		status = http.StatusBadRequest
	case service.CodeCouponRejected:
		status = http.StatusUnprocessableEntity
	case service.CodeCheckoutInProgress:
		status = http.StatusConflict
	case service.CodePaymentFailed, service.CodePaymentInitFailed:
		status = http.StatusPaymentRequired
	case service.CodePaymentVerification:
		status = http.StatusBadGateway
	}

	body := gin.H{
		"code":      cerr.Code,
		"error":     cerr.Message,
		"retryable": cerr.Retryable(),
	}
	if cerr.Reason != "" {
		body["reason"] = cerr.Reason
	}
	if cerr.PaymentRef != "" {
		body["payment_ref"] = cerr.PaymentRef
	}

	c.JSON(status, body)
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
