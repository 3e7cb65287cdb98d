package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DemoClientSecret is returned instead of a Stripe client secret when Stripe is not configured.
const DemoClientSecret = "demo_mode"

type PaymentService struct {
	config *config.Config
	audit  *AuditService
}

func NewPaymentService(cfg *config.Config, audit *AuditService) *PaymentService {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}
	return &PaymentService{config: cfg, audit: audit}
}

// Offer describes the purchasable view package.
func (s *PaymentService) Offer() models.ViewPackageOffer {
	return models.ViewPackageOffer{
		Views:           s.config.ViewPackageSize,
		Amount:          s.config.ViewPackagePrice,
		Currency:        s.config.ViewPackageCurrency,
		AmountFormatted: models.FormatCurrency(s.config.ViewPackagePrice, s.config.ViewPackageCurrency),
	}
}

func (s *PaymentService) newPending(db *gorm.DB, investorID uuid.UUID) (*models.Payment, error) {
	payment := &models.Payment{
		InvestorID:   investorID,
		Amount:       s.config.ViewPackagePrice,
		Currency:     s.config.ViewPackageCurrency,
		ViewsGranted: s.config.ViewPackageSize,
		Status:       models.PaymentStatusPending,
		Description:  fmt.Sprintf("Project view package - %d project unlocks", s.config.ViewPackageSize),
	}
	if err := db.Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) metadata(p *models.Payment) map[string]string {
	return map[string]string{
		"payment_id":  p.ID.String(),
		"investor_id": p.InvestorID.String(),
	}
}

// CreatePaymentIntent creates a pending payment and a Stripe payment intent for it.
func (s *PaymentService) CreatePaymentIntent(investorID uuid.UUID) (*models.Payment, string, error) {
	db := database.GetDB()

	payment, err := s.newPending(db, investorID)
	if err != nil {
		return nil, "", err
	}

	if !s.config.StripeEnabled() {
		return payment, DemoClientSecret, nil
	}

	pi, err := paymentintent.New(&stripe.PaymentIntentParams{
		Amount:   stripe.Int64(payment.Amount),
		Currency: stripe.String(payment.Currency),
		Metadata: s.metadata(payment),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	})
	if err != nil {
		db.Delete(payment)
		return nil, "", apperr.Wrap(err, apperr.CodeUnavailable, "Payment provider error")
	}

	payment.StripePaymentID = pi.ID
	payment.StripeClientSecret = pi.ClientSecret
	if err := db.Save(payment).Error; err != nil {
		return nil, "", err
	}
	return payment, pi.ClientSecret, nil
}

// CreateCheckoutSession creates a pending payment and a hosted checkout page for it.
func (s *PaymentService) CreateCheckoutSession(investorID uuid.UUID, successURL, cancelURL string) (*models.Payment, string, error) {
	db := database.GetDB()

	payment, err := s.newPending(db, investorID)
	if err != nil {
		return nil, "", err
	}

	if !s.config.StripeEnabled() {
		return payment, fmt.Sprintf("%s/payments/demo?payment_id=%s", s.config.AppURL, payment.ID), nil
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(payment.ID.String()),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(payment.Currency),
				UnitAmount: stripe.Int64(payment.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(payment.Description),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: s.metadata(payment),
		},
	}
	for k, v := range s.metadata(payment) {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		db.Delete(payment)
		return nil, "", apperr.Wrap(err, apperr.CodeUnavailable, "Payment provider error")
	}

	payment.StripeSessionID = sess.ID
	if err := db.Save(payment).Error; err != nil {
		return nil, "", err
	}
	return payment, sess.URL, nil
}

// ConfirmPayment settles a pending payment from the client's return. With Stripe configured
// the payment intent is verified first. Without Stripe the payment is demo-confirmed.
func (s *PaymentService) ConfirmPayment(investorID, paymentID uuid.UUID, stripePaymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := database.GetDB().First(&payment, "id = ? AND investor_id = ?", paymentID, investorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment")
		}
		return nil, err
	}

	receipt := ""
	if s.config.StripeEnabled() {
		if stripePaymentID == "" {
			stripePaymentID = payment.StripePaymentID
		}
		if stripePaymentID == "" {
			return nil, apperr.New(apperr.CodeInvalid, "Stripe payment id is required")
		}
		params := &stripe.PaymentIntentParams{}
		params.AddExpand("latest_charge")
		pi, err := paymentintent.Get(stripePaymentID, params)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeUnavailable, "Payment provider error")
		}
		if pi.Metadata["payment_id"] != payment.ID.String() {
			return nil, apperr.New(apperr.CodeInvalid, "Payment intent does not belong to this payment")
		}
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			return nil, apperr.New(apperr.CodePaymentRequired, "Payment not successful")
		}
		if pi.LatestCharge != nil {
			receipt = pi.LatestCharge.ReceiptURL
		}
	}

	return s.Apply(paymentID, models.PaymentEventSucceed, receipt)
}

// Apply moves a payment through ev and adjusts the investor's credits in the same
// transaction. Succeeded grants the payment's views; refunded takes them back, which may
// leave the balance negative. Re-delivering an event that already applied is a no-op.
func (s *PaymentService) Apply(paymentID uuid.UUID, ev models.PaymentEvent, receiptURL string) (*models.Payment, error) {
	var payment models.Payment
	changed := false

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("payment")
			}
			return err
		}

		from := payment.Status
		next, ok := from.Next(ev)
		if !ok {
			if alreadyApplied(from, ev) {
				return nil
			}
			return apperr.Transition("payment", string(from), string(ev))
		}

		now := time.Now()
		updates := map[string]any{"status": next}
		switch next {
		case models.PaymentStatusSucceeded:
			updates["succeeded_at"] = now
			if receiptURL != "" {
				updates["receipt_url"] = receiptURL
			}
		case models.PaymentStatusRefunded:
			updates["refunded_at"] = now
		case models.PaymentStatusPending, models.PaymentStatusFailed:
		}

		res := tx.Model(&models.Payment{}).Where("id = ? AND status = ?", payment.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeConflict, "Payment was updated concurrently")
		}

		switch next {
		case models.PaymentStatusSucceeded:
			if err := adjustCredits(tx, payment.InvestorID, payment.ViewsGranted); err != nil {
				return err
			}
		case models.PaymentStatusRefunded:
			if err := adjustCredits(tx, payment.InvestorID, -payment.ViewsGranted); err != nil {
				return err
			}
		case models.PaymentStatusPending, models.PaymentStatusFailed:
		}

		changed = true
		if err := tx.First(&payment, "id = ?", payment.ID).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(payment.InvestorID),
			Action:     auditActionFor(next),
			EntityType: "payment",
			EntityID:   payment.ID,
			Metadata:   map[string]any{"from": from, "to": next, "views": payment.ViewsGranted},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.L().Info("payment transitioned",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(payment.Status)),
		)
	}
	return &payment, nil
}

func alreadyApplied(s models.PaymentStatus, ev models.PaymentEvent) bool {
	switch ev {
	case models.PaymentEventSucceed:
		return s == models.PaymentStatusSucceeded
	case models.PaymentEventFail:
		return s == models.PaymentStatusFailed
	case models.PaymentEventRefund:
		return s == models.PaymentStatusRefunded
	}
	return false
}

func auditActionFor(s models.PaymentStatus) models.AuditAction {
	switch s {
	case models.PaymentStatusSucceeded:
		return models.AuditPaymentSucceeded
	case models.PaymentStatusRefunded:
		return models.AuditPaymentRefunded
	default:
		return models.AuditPaymentFailed
	}
}

func adjustCredits(tx *gorm.DB, investorID uuid.UUID, delta int) error {
	pkg := models.PaymentPackage{InvestorID: investorID}
	if err := tx.Where("investor_id = ?", investorID).FirstOrCreate(&pkg).Error; err != nil {
		return err
	}
	return tx.Model(&models.PaymentPackage{}).Where("id = ?", pkg.ID).
		Updates(map[string]any{
			"total_views_purchased": gorm.Expr("total_views_purchased + ?", delta),
			"updated_at":            time.Now(),
		}).Error
}

// HandleWebhook verifies a Stripe event and applies it to the matching payment.
func (s *PaymentService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInvalid, "Invalid webhook signature")
	}

	var (
		paymentID uuid.UUID
		ev        models.PaymentEvent
		receipt   string
	)

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return apperr.Wrap(err, apperr.CodeInvalid, "Malformed payment intent")
		}
		if paymentID, err = s.resolvePayment(pi.Metadata, pi.ID); err != nil {
			return err
		}
		ev = models.PaymentEventSucceed
		if event.Type == "payment_intent.payment_failed" {
			ev = models.PaymentEventFail
		}
		if pi.LatestCharge != nil {
			receipt = pi.LatestCharge.ReceiptURL
		}
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperr.Wrap(err, apperr.CodeInvalid, "Malformed checkout session")
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil
		}
		if paymentID, err = uuid.Parse(sess.ClientReferenceID); err != nil {
			return apperr.New(apperr.CodeInvalid, "Unknown checkout session")
		}
		if sess.PaymentIntent != nil {
			database.GetDB().Model(&models.Payment{}).Where("id = ?", paymentID).
				Update("stripe_payment_id", sess.PaymentIntent.ID)
		}
		ev = models.PaymentEventSucceed
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return apperr.Wrap(err, apperr.CodeInvalid, "Malformed charge")
		}
		if !ch.Refunded || ch.PaymentIntent == nil {
			return nil
		}
		if paymentID, err = s.resolvePayment(ch.Metadata, ch.PaymentIntent.ID); err != nil {
			return err
		}
		ev = models.PaymentEventRefund
	default:
		logger.L().Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil
	}

	_, err = s.Apply(paymentID, ev, receipt)
	return err
}

func (s *PaymentService) resolvePayment(meta map[string]string, intentID string) (uuid.UUID, error) {
	if id, err := uuid.Parse(meta["payment_id"]); err == nil {
		return id, nil
	}
	var p models.Payment
	if err := database.GetDB().Select("id").Where("stripe_payment_id = ?", intentID).First(&p).Error; err != nil {
		return uuid.Nil, apperr.NotFound("payment")
	}
	return p.ID, nil
}

// PaymentStatus is the investor's purchase state.
type PaymentStatus struct {
	Package       models.PackageSummary   `json:"package"`
	Offer         models.ViewPackageOffer `json:"offer"`
	StripeEnabled bool                    `json:"stripe_enabled"`
	PublicKey     string                  `json:"publishable_key,omitempty"`
}

func (s *PaymentService) Status(investorID uuid.UUID) (*PaymentStatus, error) {
	pkg, err := packageFor(database.GetDB(), investorID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatus{
		Package:       pkg.Summary(),
		Offer:         s.Offer(),
		StripeEnabled: s.config.StripeEnabled(),
		PublicKey:     s.config.StripePublishableKey,
	}, nil
}

// GetPaymentHistory retrieves payment history for an investor
func (s *PaymentService) GetPaymentHistory(investorID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := database.GetDB().Where("investor_id = ?", investorID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}
