package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"fulfillment-service/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "Webhook-Signature"

// FulfillmentService is the business surface the webhook drives.
type FulfillmentService interface {
	ProcessCheckout(ctx context.Context, session domain.CheckoutSession) error
	ProcessRefund(ctx context.Context, charge domain.RefundCharge) error
	RecordDownload(ctx context.Context, purchaseID string) error
}

// WebhookHandler terminates payment-provider webhooks. Any structurally
// parseable, signature-valid event is acknowledged with 200 {"received":true}
// even when the business logic inside rejects it; only a bad signature or an
// unreadable body gets a 4xx. This keeps the provider from redelivering
// events we can never process.
type WebhookHandler struct {
	svc    FulfillmentService
	secret []byte
}

func NewWebhookHandler(svc FulfillmentService, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: []byte(secret)}
}

// Router wires the HTTP routes.
func (h *WebhookHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	})
	r.Post("/webhooks/payments", h.handlePaymentEvent)
	r.Post("/purchases/{purchaseID}/download", h.handleDownload)
	return r
}

func (h *WebhookHandler) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Warn("Webhook signature verification failed")
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.WithError(err).Warn("Failed to unmarshal webhook event")
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	logCtx := log.WithFields(log.Fields{"event_id": event.ID, "event_type": event.Type})

	switch event.Type {
	case "checkout.session.completed":
		var session domain.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			logCtx.WithError(err).Warn("Failed to unmarshal checkout session")
			break
		}
		if err := h.svc.ProcessCheckout(r.Context(), session); err != nil {
			// Business rejections are expected conditions; the event is
			// still acknowledged below so it is not redelivered forever.
			switch {
			case errors.Is(err, domain.ErrAlreadyPurchased):
				logCtx.Info("Checkout already fulfilled")
			case errors.Is(err, domain.ErrProductNotFound):
				logCtx.Warn("Checkout for unknown product")
			default:
				logCtx.WithError(err).Error("Checkout processing failed")
			}
		}

	case "charge.refunded":
		var charge domain.RefundCharge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			logCtx.WithError(err).Warn("Failed to unmarshal refund charge")
			break
		}
		if err := h.svc.ProcessRefund(r.Context(), charge); err != nil {
			if errors.Is(err, domain.ErrPurchaseNotFound) {
				logCtx.Warn("Refund for unknown purchase")
			} else {
				logCtx.WithError(err).Error("Refund processing failed")
			}
		}

	default:
		logCtx.Debug("Ignoring unhandled event type")
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseID")
	if err := h.svc.RecordDownload(r.Context(), purchaseID); err != nil {
		if errors.Is(err, domain.ErrPurchaseNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "purchase not found"})
			return
		}
		log.WithError(err).Error("Failed to record download")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
