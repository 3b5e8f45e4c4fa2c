package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventmarket/api/internal/auth"
	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/middleware"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetLatestInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store      OrderStore
	reconciler *pricing.Reconciler
	fees       pricing.Fees
}

func NewOrderHandler(store OrderStore, reconciler *pricing.Reconciler, fees pricing.Fees) *OrderHandler {
	return &OrderHandler{store: store, reconciler: reconciler, fees: fees}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type orderResponse struct {
	ID                 uuid.UUID       `json:"id"`
	OrderNumber        string          `json:"order_number"`
	HostID             *uuid.UUID      `json:"host_id"`
	EventName          string          `json:"event_name"`
	EventDate          *time.Time      `json:"event_date"`
	EventLocation      string          `json:"event_location"`
	GuestCount         int32           `json:"guest_count"`
	Status             string          `json:"status"`
	SelectedServices   json.RawMessage `json:"selected_services"`
	SelectedItems      json.RawMessage `json:"selected_items"`
	CustomAdjustments  json.RawMessage `json:"custom_adjustments"`
	IsTaxExempt        bool            `json:"is_tax_exempt"`
	IsServiceFeeWaived bool            `json:"is_service_fee_waived"`
	Subtotal           string          `json:"subtotal"`
	ServiceFee         string          `json:"service_fee"`
	DeliveryFee        string          `json:"delivery_fee"`
	AdjustmentsTotal   string          `json:"adjustments_total"`
	Tax                string          `json:"tax"`
	Total              string          `json:"total"`
	CreatedBy          uuid.UUID       `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// orderDetailResponse adds the reconciled pricing to the stored order.
type orderDetailResponse struct {
	orderResponse
	Pricing       pricing.Totals `json:"pricing"`
	PricingSource pricing.Source `json:"pricing_source"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed in_progress completed cancelled"`
}

// --- Handlers ---

// List handles GET /orders. Hosts only see their own events.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	page := parsePage(r)
	status := optText(r.URL.Query().Get("status"))
	host := hostScope(claims)

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Status: status,
		HostID: host,
		Limit:  int32(page.Limit),
		Offset: page.offset(),
	})
	if err != nil {
		writeInternal(w, r, "list orders", err)
		return
	}
	total, err := h.store.CountOrders(r.Context(), database.CountOrdersParams{Status: status, HostID: host})
	if err != nil {
		writeInternal(w, r, "count orders", err)
		return
	}

	data := make([]orderResponse, len(orders))
	for i, o := range orders {
		data[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, newPaginated(data, page, total))
}

// Get handles GET /orders/{id}. Pricing comes from the latest invoice's
// snapshot when there is one.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseUUIDParam(w, r, "id", "order ID")
	if !ok {
		return
	}

	order, err := h.store.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternal(w, r, "get order", err)
		return
	}
	if host := hostScope(claims); host.Valid && (!order.HostID.Valid || order.HostID.Bytes != host.Bytes) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	totals, source, err := h.resolvePricing(r.Context(), order)
	if err != nil {
		writeInternal(w, r, "resolve order pricing", err)
		return
	}
	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Pricing:       totals,
		PricingSource: source,
	})
}

func (h *OrderHandler) resolvePricing(ctx context.Context, order database.Order) (pricing.Totals, pricing.Source, error) {
	var snapshot *pricing.Snapshot
	inv, err := h.store.GetLatestInvoiceByOrder(ctx, order.ID)
	switch {
	case err == nil:
		snapshot, err = pricing.ParseSnapshot(inv.PricingSnapshot)
		if err != nil {
			zap.L().Warn("unreadable pricing snapshot, using live pricing",
				zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return pricing.Totals{}, "", fmt.Errorf("get latest invoice: %w", err)
	}

	var in pricing.Input
	if snapshot == nil {
		if in, err = service.OrderInput(order, h.fees); err != nil {
			return pricing.Totals{}, "", err
		}
	}
	return h.reconciler.Resolve(snapshot, in)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	current, err := h.store.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternal(w, r, "get order", err)
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:       id,
		Status:   req.Status,
		Status_2: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "order status changed, please retry")
			return
		}
		writeInternal(w, r, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:    {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:  {enum.OrderStatusInProgress, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}

// hostScope restricts queries to the caller's events when they are a host.
func hostScope(claims *auth.Claims) pgtype.UUID {
	if claims.Role != enum.UserRoleHost {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: claims.UserID, Valid: true}
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		EventName:          o.EventName,
		EventDate:          timePtr(o.EventDate),
		EventLocation:      o.EventLocation,
		GuestCount:         o.GuestCount,
		Status:             o.Status,
		SelectedServices:   rawOr(o.SelectedServices, "[]"),
		SelectedItems:      rawOr(o.SelectedItems, "{}"),
		CustomAdjustments:  rawOr(o.CustomAdjustments, "[]"),
		IsTaxExempt:        o.IsTaxExempt,
		IsServiceFeeWaived: o.IsServiceFeeWaived,
		Subtotal:           numericToString(o.Subtotal),
		ServiceFee:         numericToString(o.ServiceFee),
		DeliveryFee:        numericToString(o.DeliveryFee),
		AdjustmentsTotal:   numericToString(o.AdjustmentsTotal),
		Tax:                numericToString(o.Tax),
		Total:              numericToString(o.Total),
		CreatedBy:          o.CreatedBy,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.HostID.Valid {
		id := uuid.UUID(o.HostID.Bytes)
		resp.HostID = &id
	}
	return resp
}

func rawOr(b []byte, fallback string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(b)
}
