package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type NotificationStore interface {
	GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (database.NotificationPreference, error)
	UpsertNotificationPreferences(ctx context.Context, arg database.UpsertNotificationPreferencesParams) (database.NotificationPreference, error)
}

// NotificationHandler serves the caller's own email preferences.
type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me/notifications", h.Get)
	r.Put("/me/notifications", h.Update)
}

type notificationPrefs struct {
	ProposalUpdates *bool `json:"proposal_updates" validate:"required"`
	PaymentUpdates  *bool `json:"payment_updates" validate:"required"`
}

// Get returns the preferences, defaulting to everything on.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	prefs, err := h.store.GetNotificationPreferences(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			on := true
			writeJSON(w, http.StatusOK, notificationPrefs{ProposalUpdates: &on, PaymentUpdates: &on})
			return
		}
		writeInternal(w, r, "get notification preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, notificationPrefs{
		ProposalUpdates: &prefs.ProposalUpdates,
		PaymentUpdates:  &prefs.PaymentUpdates,
	})
}

func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req notificationPrefs
	if !decodeAndValidate(w, r, &req) {
		return
	}

	prefs, err := h.store.UpsertNotificationPreferences(r.Context(), database.UpsertNotificationPreferencesParams{
		UserID:          claims.UserID,
		ProposalUpdates: *req.ProposalUpdates,
		PaymentUpdates:  *req.PaymentUpdates,
	})
	if err != nil {
		writeInternal(w, r, "save notification preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, notificationPrefs{
		ProposalUpdates: &prefs.ProposalUpdates,
		PaymentUpdates:  &prefs.PaymentUpdates,
	})
}
