package handler

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/validator"
)

// EmailEventStore appends validated delivery-lifecycle events.
type EmailEventStore interface {
	Append(ctx context.Context, ev domain.EmailEvent) error
}

type emailEventHandler struct {
	store EmailEventStore
}

// NewEmailEventHandler builds the Kafka message handler for the email
// provider's delivery event stream.
func NewEmailEventHandler(store EmailEventStore) *emailEventHandler {
	return &emailEventHandler{store: store}
}

// HandleMessage ingests one event. Malformed or invalid payloads are logged
// and dropped so the consumer offset keeps advancing; the log line is the
// dead letter.
func (h *emailEventHandler) HandleMessage(ctx context.Context, message []byte) error {
	var ev domain.EmailEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		log.WithError(err).Error("Failed to unmarshal email event, message dropped")
		return nil
	}

	if err := validator.ValidateEmailEvent(ev); err != nil {
		log.WithFields(log.Fields{
			"domain":     ev.Domain,
			"event_type": ev.EventType,
			"error":      err,
		}).Warn("Invalid email event, message dropped")
		return nil
	}

	if err := h.store.Append(ctx, ev); err != nil {
		// Storage failures are worth a redelivery.
		return err
	}
	return nil
}
