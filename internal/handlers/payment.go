package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// GetPackages lists the purchasable view packages
func (h *PaymentHandler) GetPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": []models.ViewPackageOffer{h.paymentService.Offer()}})
}

// CreatePaymentIntent creates a pending payment and a Stripe payment intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	payment, clientSecret, err := h.paymentService.CreatePaymentIntent(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_id":    payment.ID,
		"client_secret": clientSecret,
		"amount":        payment.Amount,
		"currency":      payment.Currency,
		"views":         payment.ViewsGranted,
		"demo_mode":     clientSecret == services.DemoClientSecret,
	})
}

type CheckoutRequest struct {
	SuccessURL string `json:"success_url" binding:"omitempty,url"`
	CancelURL  string `json:"cancel_url" binding:"omitempty,url"`
}

// CreateCheckout creates a pending payment and a hosted checkout session
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	payment, url, err := h.paymentService.CreateCheckoutSession(userID, req.SuccessURL, req.CancelURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_id":   payment.ID,
		"checkout_url": url,
		"amount":       payment.Amount,
		"currency":     payment.Currency,
		"views":        payment.ViewsGranted,
	})
}

// ConfirmPaymentRequest represents payment confirmation input
type ConfirmPaymentRequest struct {
	PaymentID       uuid.UUID `json:"payment_id" binding:"required"`
	StripePaymentID string    `json:"stripe_payment_id"`
}

// ConfirmPayment settles a payment on the client's return from checkout
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment, err := h.paymentService.ConfirmPayment(userID, req.PaymentID, req.StripePaymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := h.paymentService.Status(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment confirmed successfully",
		"payment": payment.ToResponse(),
		"package": status.Package,
	})
}

// GetPaymentStatus returns the investor's credit balance and the current offer
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	status, err := h.paymentService.Status(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetPaymentHistory returns the user's payment history
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	payments, err := h.paymentService.GetPaymentHistory(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]models.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		response = append(response, p.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"payments": response})
}

// Webhook receives Stripe events. It is unauthenticated and trusts only the signature.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperr.Wrap(err, apperr.CodeInvalid, "Unreadable body"))
		return
	}

	if err := h.paymentService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		logger.L().Warn("stripe webhook rejected", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
