package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventmarket/api/internal/delivery"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// Quoter prices an unsaved selection. Satisfied by *service.Quoter.
type Quoter interface {
	Quote(ctx context.Context, req service.QuoteRequest) (*service.Quote, error)
}

// QuoteHandler serves the booking-flow price preview.
type QuoteHandler struct {
	quoter Quoter
}

func NewQuoteHandler(quoter Quoter) *QuoteHandler {
	return &QuoteHandler{quoter: quoter}
}

func (h *QuoteHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quotes", h.Preview)
}

// quoteRequest is the priced part of a booking or proposal body.
type quoteRequest struct {
	Services           []pricing.RawService  `json:"services" validate:"required,min=1"`
	SelectedItems      pricing.SelectedItems `json:"selected_items"`
	EventLocation      string                `json:"event_location"`
	EventLat           *float64              `json:"event_lat" validate:"omitempty,latitude"`
	EventLng           *float64              `json:"event_lng" validate:"omitempty,longitude"`
	Adjustments        []pricing.Adjustment  `json:"custom_adjustments" validate:"omitempty,dive"`
	IsTaxExempt        bool                  `json:"is_tax_exempt"`
	IsServiceFeeWaived bool                  `json:"is_service_fee_waived"`
}

func (q quoteRequest) toService() service.QuoteRequest {
	req := service.QuoteRequest{
		Services:           q.Services,
		SelectedItems:      q.SelectedItems,
		EventLocation:      q.EventLocation,
		Adjustments:        q.Adjustments,
		IsTaxExempt:        q.IsTaxExempt,
		IsServiceFeeWaived: q.IsServiceFeeWaived,
	}
	if q.EventLat != nil && q.EventLng != nil {
		req.EventPoint = &delivery.Point{Lat: *q.EventLat, Lng: *q.EventLng}
	}
	return req
}

type quoteResponse struct {
	Totals pricing.Totals `json:"totals"`
}

// Preview handles POST /quotes. Nothing is persisted.
func (h *QuoteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	quote, err := h.quoter.Quote(r.Context(), req.toService())
	if err != nil {
		if isPricingError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternal(w, r, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Totals: quote.Totals})
}

// isPricingError reports selection errors the client can fix.
func isPricingError(err error) bool {
	return errors.Is(err, service.ErrNoServices) ||
		errors.Is(err, pricing.ErrComboIncomplete) ||
		errors.Is(err, pricing.ErrUnknownFeeType) ||
		errors.Is(err, pricing.ErrUnknownAdjustmentType) ||
		errors.Is(err, pricing.ErrUnknownAdjustmentMode) ||
		errors.Is(err, pricing.ErrNegativeAdjustment)
}
