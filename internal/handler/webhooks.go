package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/logging"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// WebhookParser is satisfied by *payments.Client.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.WebhookEvent, error)
}

// PaymentRecorder is satisfied by *service.ProposalService.
type PaymentRecorder interface {
	MarkPaid(ctx context.Context, paymentIntentID string) (database.Invoice, error)
}

// WebhookHandler receives Stripe events.
type WebhookHandler struct {
	parser   WebhookParser
	recorder PaymentRecorder
}

func NewWebhookHandler(parser WebhookParser, recorder PaymentRecorder) *WebhookHandler {
	return &WebhookHandler{parser: parser, recorder: recorder}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Stripe)
}

// Stripe handles POST /webhooks/stripe. Events that can never succeed are
// acknowledged so Stripe stops retrying them.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "webhooks are not configured")
			return
		}
		logger.Warn("rejected stripe webhook", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != payments.EventPaymentIntentSucceeded || event.PaymentIntentID == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	inv, err := h.recorder.MarkPaid(r.Context(), event.PaymentIntentID)
	switch {
	case err == nil:
		logger.Info("invoice paid",
			zap.String("event_id", event.ID),
			zap.String("invoice_id", inv.ID.String()),
			zap.String("payment_intent_id", event.PaymentIntentID))
	case errors.Is(err, service.ErrProposalNotFound), errors.Is(err, service.ErrInvalidTransition):
		logger.Warn("ignoring payment for unknown or unpayable proposal",
			zap.String("event_id", event.ID),
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.Error(err))
	default:
		writeInternal(w, r, "mark invoice paid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
