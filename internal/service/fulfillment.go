package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/sender"
	"fulfillment-service/internal/validator"
)

// PurchaseRepository defines the purchase data access the service needs.
type PurchaseRepository interface {
	GetCompletedByUserProduct(ctx context.Context, userID, productID string) (*domain.Purchase, error)
	Create(ctx context.Context, p *domain.Purchase) error
	MarkRefunded(ctx context.Context, transactionID string) error
	RecordAccess(ctx context.Context, purchaseID string) error
}

// ProductRepository resolves checkout metadata to purchasable products.
type ProductRepository interface {
	GetPublished(ctx context.Context, id string) (*domain.Product, error)
}

// EmailLogRepository records every confirmation-email attempt.
type EmailLogRepository interface {
	SaveLog(ctx context.Context, log domain.EmailLog) error
}

type FulfillmentService struct {
	purchases PurchaseRepository
	products  ProductRepository
	emailLogs EmailLogRepository
	sender    sender.EmailSender
}

func NewFulfillmentService(purchases PurchaseRepository, products ProductRepository, emailLogs EmailLogRepository, emailSender sender.EmailSender) *FulfillmentService {
	return &FulfillmentService{
		purchases: purchases,
		products:  products,
		emailLogs: emailLogs,
		sender:    emailSender,
	}
}

// ProcessCheckout turns a verified checkout-completed event into a durable
// access grant and a confirmation email, exactly once per (user, product).
// Business-level rejections (validation, duplicate, unknown product) come
// back as errors for the caller to log; the caller acknowledges the event
// either way so the provider does not redeliver it forever.
func (s *FulfillmentService) ProcessCheckout(ctx context.Context, session domain.CheckoutSession) error {
	info, err := validator.CheckoutInfoFromSession(session)
	if err != nil {
		log.WithFields(log.Fields{
			"session_id": session.ID,
			"error":      err,
		}).Warn("Checkout metadata validation failed, event dropped")
		return fmt.Errorf("validation error: %w", err)
	}

	logCtx := log.WithFields(log.Fields{
		"user_id":        info.UserID,
		"product_id":     info.ProductID,
		"product_type":   info.ProductType,
		"transaction_id": info.TransactionID,
	})

	product, err := s.products.GetPublished(ctx, info.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			logCtx.Warn("Checkout references unknown or unpublished product")
		}
		return err
	}

	// Fast-path duplicate check. The partial unique index on purchases is
	// the real guard; this only avoids a pointless insert attempt.
	existing, err := s.purchases.GetCompletedByUserProduct(ctx, info.UserID, info.ProductID)
	if err != nil {
		return err
	}
	if existing != nil {
		logCtx.Info("Duplicate purchase event, user already has access")
		return domain.ErrAlreadyPurchased
	}

	purchase := domain.Purchase{
		ID:            uuid.NewString(),
		UserID:        info.UserID,
		ProductID:     info.ProductID,
		StoreID:       product.StoreID,
		ProductType:   info.ProductType,
		Amount:        info.Amount,
		Currency:      info.Currency,
		PaymentMethod: "stripe",
		TransactionID: info.TransactionID,
		Status:        domain.PurchaseCompleted,
		AccessGranted: true,
		DownloadCount: 0,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.purchases.Create(ctx, &purchase); err != nil {
		if errors.Is(err, domain.ErrAlreadyPurchased) {
			logCtx.Info("Concurrent duplicate purchase rejected by unique index")
		}
		return err
	}

	logCtx.WithField("purchase_id", purchase.ID).Info("Purchase recorded, access granted")

	// Email dispatch is fire-and-forget: a send failure never rolls back
	// the grant.
	title := info.ProductTitle
	if title == "" {
		title = product.Title
	}
	s.sendConfirmation(ctx, sender.PurchaseConfirmation{
		CustomerEmail: info.CustomerEmail,
		CustomerName:  info.CustomerName,
		ProductTitle:  title,
		ProductType:   info.ProductType,
		Amount:        info.Amount,
		Currency:      info.Currency,
	}, info.TransactionID)

	return nil
}

// ProcessRefund transitions the purchase identified by the provider
// transaction id from completed to refunded. Access is revoked; the record
// itself is kept.
func (s *FulfillmentService) ProcessRefund(ctx context.Context, charge domain.RefundCharge) error {
	if charge.PaymentIntent == "" {
		log.WithField("charge_id", charge.ID).Warn("Refund event without payment intent, dropped")
		return domain.ErrPurchaseNotFound
	}
	if err := s.purchases.MarkRefunded(ctx, charge.PaymentIntent); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"transaction_id":  charge.PaymentIntent,
		"amount_refunded": charge.AmountRefunded,
	}).Info("Purchase marked refunded")
	return nil
}

// RecordDownload bumps the access counters when a buyer consumes content.
func (s *FulfillmentService) RecordDownload(ctx context.Context, purchaseID string) error {
	return s.purchases.RecordAccess(ctx, purchaseID)
}

func (s *FulfillmentService) sendConfirmation(ctx context.Context, conf sender.PurchaseConfirmation, transactionID string) {
	if conf.CustomerEmail == "" {
		log.WithField("transaction_id", transactionID).Warn("No customer email on checkout, confirmation skipped")
		return
	}

	subject := conf.Subject()
	body := conf.Body()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Retry sending up to 3 times with exponential backoff.
	maxAttempts := 3
	delay := 1 * time.Second
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.sender.SendEmail(ctx, conf.CustomerEmail, subject, body)
		if err == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{
					"attempt": attempt,
					"email":   conf.CustomerEmail,
				}).Info("Confirmation email sent after retry")
			}
			break
		}
		if attempt < maxAttempts {
			log.WithFields(log.Fields{
				"attempt": attempt,
				"error":   err,
				"email":   conf.CustomerEmail,
			}).Warn("Failed to send confirmation email, retrying")
			time.Sleep(delay)
			delay *= 2
		}
	}

	logEntry := domain.EmailLog{
		TransactionID:  transactionID,
		RecipientEmail: conf.CustomerEmail,
		Subject:        subject,
	}
	if err != nil {
		log.WithError(err).Error("Failed to send confirmation email")
		logEntry.Status = domain.StatusFailed
		logEntry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	} else {
		log.WithField("email", conf.CustomerEmail).Info("Confirmation email sent")
		logEntry.Status = domain.StatusSent
	}

	if err := s.emailLogs.SaveLog(ctx, logEntry); err != nil {
		log.WithError(err).Error("Failed to save email log")
	}
}
