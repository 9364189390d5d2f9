package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fulfillment-service/internal/domain"
)

type mockPurchaseRepo struct {
	getFunc          func(ctx context.Context, userID, productID string) (*domain.Purchase, error)
	createFunc       func(ctx context.Context, p *domain.Purchase) error
	markRefundedFunc func(ctx context.Context, transactionID string) error
	recordAccessFunc func(ctx context.Context, purchaseID string) error

	created []domain.Purchase
}

func (m *mockPurchaseRepo) GetCompletedByUserProduct(ctx context.Context, userID, productID string) (*domain.Purchase, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, productID)
	}
	return nil, nil
}

func (m *mockPurchaseRepo) Create(ctx context.Context, p *domain.Purchase) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, p); err != nil {
			return err
		}
	}
	m.created = append(m.created, *p)
	return nil
}

func (m *mockPurchaseRepo) MarkRefunded(ctx context.Context, transactionID string) error {
	if m.markRefundedFunc != nil {
		return m.markRefundedFunc(ctx, transactionID)
	}
	return nil
}

func (m *mockPurchaseRepo) RecordAccess(ctx context.Context, purchaseID string) error {
	if m.recordAccessFunc != nil {
		return m.recordAccessFunc(ctx, purchaseID)
	}
	return nil
}

type mockProductRepo struct {
	getFunc func(ctx context.Context, id string) (*domain.Product, error)
}

func (m *mockProductRepo) GetPublished(ctx context.Context, id string) (*domain.Product, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &domain.Product{ID: id, StoreID: "store1", Title: "Mixing Basics", Type: domain.ProductCourse, Published: true}, nil
}

type mockEmailLogRepo struct {
	logs []domain.EmailLog
}

func (m *mockEmailLogRepo) SaveLog(_ context.Context, l domain.EmailLog) error {
	m.logs = append(m.logs, l)
	return nil
}

type mockEmailSender struct {
	sendFunc func(ctx context.Context, to, subject, body string) error

	sent []struct{ To, Subject, Body string }
}

func (m *mockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, to, subject, body); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, struct{ To, Subject, Body string }{to, subject, body})
	return nil
}

func checkoutSession() domain.CheckoutSession {
	return domain.CheckoutSession{
		ID:            "cs_1",
		Mode:          "payment",
		AmountTotal:   1499,
		Currency:      "usd",
		PaymentIntent: "pi_1",
		Metadata: map[string]string{
			"userId":        "u1",
			"productId":     "p1",
			"productType":   "course",
			"amount":        "1499",
			"productTitle":  "Mixing Basics",
			"customerEmail": "u1@example.com",
			"customerName":  "Sam",
		},
	}
}

func TestProcessCheckoutSuccess(t *testing.T) {
	purchases := &mockPurchaseRepo{}
	products := &mockProductRepo{}
	emailLogs := &mockEmailLogRepo{}
	emailSender := &mockEmailSender{}
	svc := NewFulfillmentService(purchases, products, emailLogs, emailSender)

	if err := svc.ProcessCheckout(context.Background(), checkoutSession()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(purchases.created) != 1 {
		t.Fatalf("created %d purchases, want 1", len(purchases.created))
	}
	p := purchases.created[0]
	if p.UserID != "u1" || p.ProductID != "p1" {
		t.Errorf("unexpected purchase identities: %+v", p)
	}
	if p.Amount != 1499 || p.Status != domain.PurchaseCompleted || !p.AccessGranted || p.DownloadCount != 0 {
		t.Errorf("unexpected purchase state: %+v", p)
	}
	if p.StoreID != "store1" {
		t.Errorf("store id = %q, want store1 from product", p.StoreID)
	}

	if len(emailSender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(emailSender.sent))
	}
	mail := emailSender.sent[0]
	if mail.To != "u1@example.com" {
		t.Errorf("email to = %q", mail.To)
	}
	if !strings.Contains(mail.Body, "14.99 USD") {
		t.Errorf("email body should render 1499 cents as 14.99 USD, got:\n%s", mail.Body)
	}
	if !strings.Contains(mail.Body, "Mixing Basics") {
		t.Errorf("email body should mention the product title, got:\n%s", mail.Body)
	}

	if len(emailLogs.logs) != 1 || emailLogs.logs[0].Status != domain.StatusSent {
		t.Errorf("expected one sent email log, got %+v", emailLogs.logs)
	}
}

func TestProcessCheckoutDuplicate(t *testing.T) {
	purchases := &mockPurchaseRepo{
		getFunc: func(_ context.Context, userID, productID string) (*domain.Purchase, error) {
			return &domain.Purchase{UserID: userID, ProductID: productID, Status: domain.PurchaseCompleted}, nil
		},
	}
	emailSender := &mockEmailSender{}
	svc := NewFulfillmentService(purchases, &mockProductRepo{}, &mockEmailLogRepo{}, emailSender)

	err := svc.ProcessCheckout(context.Background(), checkoutSession())
	if !errors.Is(err, domain.ErrAlreadyPurchased) {
		t.Fatalf("error = %v, want ErrAlreadyPurchased", err)
	}
	if len(purchases.created) != 0 {
		t.Errorf("duplicate must not create a record, created %d", len(purchases.created))
	}
	if len(emailSender.sent) != 0 {
		t.Errorf("duplicate must not send a confirmation, sent %d", len(emailSender.sent))
	}
}

func TestProcessCheckoutConcurrentDuplicate(t *testing.T) {
	// The application-level check passes but the insert hits the unique
	// index: the storage-layer backstop for racing deliveries.
	purchases := &mockPurchaseRepo{
		createFunc: func(_ context.Context, _ *domain.Purchase) error {
			return domain.ErrAlreadyPurchased
		},
	}
	emailSender := &mockEmailSender{}
	svc := NewFulfillmentService(purchases, &mockProductRepo{}, &mockEmailLogRepo{}, emailSender)

	err := svc.ProcessCheckout(context.Background(), checkoutSession())
	if !errors.Is(err, domain.ErrAlreadyPurchased) {
		t.Fatalf("error = %v, want ErrAlreadyPurchased", err)
	}
	if len(emailSender.sent) != 0 {
		t.Errorf("no confirmation should be sent when the insert is rejected")
	}
}

func TestProcessCheckoutInvalidMetadata(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.CheckoutSession)
	}{
		{"missing user id", func(s *domain.CheckoutSession) { delete(s.Metadata, "userId") }},
		{"missing product id", func(s *domain.CheckoutSession) { delete(s.Metadata, "productId") }},
		{"missing amount", func(s *domain.CheckoutSession) { delete(s.Metadata, "amount") }},
		{"unknown product type", func(s *domain.CheckoutSession) { s.Metadata["productType"] = "nft" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purchases := &mockPurchaseRepo{}
			emailSender := &mockEmailSender{}
			svc := NewFulfillmentService(purchases, &mockProductRepo{}, &mockEmailLogRepo{}, emailSender)

			s := checkoutSession()
			tt.mutate(&s)
			if err := svc.ProcessCheckout(context.Background(), s); err == nil {
				t.Fatal("expected a validation error")
			}
			if len(purchases.created) != 0 {
				t.Errorf("malformed event must perform no mutation")
			}
			if len(emailSender.sent) != 0 {
				t.Errorf("malformed event must send no notification")
			}
		})
	}
}

func TestProcessCheckoutProductNotFound(t *testing.T) {
	products := &mockProductRepo{
		getFunc: func(_ context.Context, _ string) (*domain.Product, error) {
			return nil, domain.ErrProductNotFound
		},
	}
	purchases := &mockPurchaseRepo{}
	svc := NewFulfillmentService(purchases, products, &mockEmailLogRepo{}, &mockEmailSender{})

	err := svc.ProcessCheckout(context.Background(), checkoutSession())
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("error = %v, want ErrProductNotFound", err)
	}
	if len(purchases.created) != 0 {
		t.Errorf("unknown product must not create a purchase")
	}
}

func TestProcessCheckoutSendFailureKeepsGrant(t *testing.T) {
	purchases := &mockPurchaseRepo{}
	emailLogs := &mockEmailLogRepo{}
	emailSender := &mockEmailSender{
		sendFunc: func(_ context.Context, _, _, _ string) error {
			return errors.New("smtp unavailable")
		},
	}
	svc := NewFulfillmentService(purchases, &mockProductRepo{}, emailLogs, emailSender)

	if err := svc.ProcessCheckout(context.Background(), checkoutSession()); err != nil {
		t.Fatalf("send failure must not fail fulfillment, got %v", err)
	}
	if len(purchases.created) != 1 {
		t.Fatalf("purchase must be granted despite email failure")
	}
	if len(emailLogs.logs) != 1 || emailLogs.logs[0].Status != domain.StatusFailed {
		t.Errorf("expected a failed email log, got %+v", emailLogs.logs)
	}
}

func TestProcessRefund(t *testing.T) {
	var refunded string
	purchases := &mockPurchaseRepo{
		markRefundedFunc: func(_ context.Context, transactionID string) error {
			refunded = transactionID
			return nil
		},
	}
	svc := NewFulfillmentService(purchases, &mockProductRepo{}, &mockEmailLogRepo{}, &mockEmailSender{})

	err := svc.ProcessRefund(context.Background(), domain.RefundCharge{ID: "ch_1", PaymentIntent: "pi_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded != "pi_1" {
		t.Errorf("refunded transaction = %q, want pi_1", refunded)
	}

	err = svc.ProcessRefund(context.Background(), domain.RefundCharge{ID: "ch_2"})
	if !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Errorf("refund without payment intent: error = %v, want ErrPurchaseNotFound", err)
	}
}
