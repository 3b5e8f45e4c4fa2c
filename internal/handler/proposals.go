package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/middleware"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ProposalServicer defines the service methods needed by proposal handlers.
// Satisfied by *service.ProposalService; narrow interface for testability.
type ProposalServicer interface {
	CreateProposal(ctx context.Context, req service.CreateProposalRequest) (*service.ProposalResult, error)
	UpdateProposal(ctx context.Context, invoiceID uuid.UUID, req service.UpdateProposalRequest) (*service.ProposalResult, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*service.ProposalView, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*service.ProposalView, error)
	SendProposal(ctx context.Context, invoiceID uuid.UUID) (database.Invoice, error)
	RenderDocument(ctx context.Context, inv database.Invoice) (string, error)
	Respond(ctx context.Context, token uuid.UUID, action, feedback string) (database.Invoice, error)
	StartPayment(ctx context.Context, token uuid.UUID) (payments.PaymentIntent, error)
}

// ProposalListStore lists invoices for the admin table.
type ProposalListStore interface {
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
	CountInvoices(ctx context.Context, status pgtype.Text) (int64, error)
}

// ProposalHandler handles admin proposal endpoints and the client-facing
// proposal page.
type ProposalHandler struct {
	svc   ProposalServicer
	store ProposalListStore
}

func NewProposalHandler(svc ProposalServicer, store ProposalListStore) *ProposalHandler {
	return &ProposalHandler{svc: svc, store: store}
}

// RegisterRoutes registers admin endpoints. Expected to be mounted at /proposals.
func (h *ProposalHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/send", h.Send)
	r.Post("/{id}/pdf", h.RenderPDF)
}

// RegisterPublicRoutes registers the token-addressed client endpoints.
// Expected to be mounted at /public/proposals.
func (h *ProposalHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/{token}", h.GetByToken)
	r.Post("/{token}/respond", h.Respond)
	r.Post("/{token}/payment-intent", h.StartPayment)
}

// --- Request / Response types ---

type proposalDetailsRequest struct {
	ClientName    string     `json:"client_name" validate:"required,max=200"`
	ClientEmail   string     `json:"client_email" validate:"required,email"`
	ClientPhone   string     `json:"client_phone" validate:"max=50"`
	ClientCompany string     `json:"client_company" validate:"max=200"`
	EventName     string     `json:"event_name" validate:"required,max=200"`
	EventDate     *time.Time `json:"event_date"`
	GuestCount    int32      `json:"guest_count" validate:"gte=0"`
	Notes         string     `json:"notes"`
}

type createProposalRequest struct {
	OrderID *uuid.UUID `json:"order_id"`
	HostID  *uuid.UUID `json:"host_id"`
	proposalDetailsRequest
	quoteRequest
}

type updateProposalRequest struct {
	proposalDetailsRequest
	quoteRequest
}

func (d proposalDetailsRequest) toService(location string) service.ProposalDetails {
	return service.ProposalDetails{
		ClientName:    d.ClientName,
		ClientEmail:   d.ClientEmail,
		ClientPhone:   d.ClientPhone,
		ClientCompany: d.ClientCompany,
		EventName:     d.EventName,
		EventDate:     d.EventDate,
		EventLocation: location,
		GuestCount:    d.GuestCount,
		Notes:         d.Notes,
	}
}

type respondRequest struct {
	Action   string `json:"action" validate:"required,oneof=accept decline request_revision"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

type invoiceResponse struct {
	ID              uuid.UUID  `json:"id"`
	InvoiceNumber   string     `json:"invoice_number"`
	OrderID         uuid.UUID  `json:"order_id"`
	ClientName      string     `json:"client_name"`
	ClientEmail     string     `json:"client_email"`
	ClientPhone     *string    `json:"client_phone"`
	ClientCompany   *string    `json:"client_company"`
	Status          string     `json:"status"`
	Token           uuid.UUID  `json:"token"`
	Notes           *string    `json:"notes"`
	ClientFeedback  *string    `json:"client_feedback"`
	PdfUrl          *string    `json:"pdf_url"`
	SentAt          *time.Time `json:"sent_at"`
	RespondedAt     *time.Time `json:"responded_at"`
	PaidAt          *time.Time `json:"paid_at"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type proposalResponse struct {
	invoiceResponse
	Order         orderResponse  `json:"order"`
	Pricing       pricing.Totals `json:"pricing"`
	PricingSource pricing.Source `json:"pricing_source"`
}

// publicProposalResponse is what the client sees through the token link.
type publicProposalResponse struct {
	InvoiceNumber  string         `json:"invoice_number"`
	ClientName     string         `json:"client_name"`
	ClientCompany  *string        `json:"client_company"`
	Status         string         `json:"status"`
	EventName      string         `json:"event_name"`
	EventDate      *time.Time     `json:"event_date"`
	EventLocation  string         `json:"event_location"`
	GuestCount     int32          `json:"guest_count"`
	Notes          *string        `json:"notes"`
	ClientFeedback *string        `json:"client_feedback"`
	PdfUrl         *string        `json:"pdf_url"`
	Pricing        pricing.Totals `json:"pricing"`
}

// --- Handlers ---

// Create handles POST /proposals.
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.CreateProposal(r.Context(), service.CreateProposalRequest{
		OrderID:         req.OrderID,
		HostID:          req.HostID,
		CreatedBy:       claims.UserID,
		ProposalDetails: req.proposalDetailsRequest.toService(req.EventLocation),
		Quote:           req.quoteRequest.toService(),
	})
	if err != nil {
		h.writeServiceError(w, r, "create proposal", err)
		return
	}
	writeJSON(w, http.StatusCreated, resultResponse(result))
}

// List handles GET /proposals.
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	status := optText(r.URL.Query().Get("status"))

	invoices, err := h.store.ListInvoices(r.Context(), database.ListInvoicesParams{
		Status: status,
		Limit:  int32(page.Limit),
		Offset: page.offset(),
	})
	if err != nil {
		writeInternal(w, r, "list invoices", err)
		return
	}
	total, err := h.store.CountInvoices(r.Context(), status)
	if err != nil {
		writeInternal(w, r, "count invoices", err)
		return
	}

	data := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		data[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, newPaginated(data, page, total))
}

// Get handles GET /proposals/{id}.
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "proposal ID")
	if !ok {
		return
	}
	view, err := h.svc.GetProposal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse(view))
}

// Update handles PUT /proposals/{id}. The pricing snapshot is recomputed.
func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "proposal ID")
	if !ok {
		return
	}
	var req updateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.UpdateProposal(r.Context(), id, service.UpdateProposalRequest{
		ProposalDetails: req.proposalDetailsRequest.toService(req.EventLocation),
		Quote:           req.quoteRequest.toService(),
	})
	if err != nil {
		h.writeServiceError(w, r, "update proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(result))
}

// Send handles POST /proposals/{id}/send.
func (h *ProposalHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "proposal ID")
	if !ok {
		return
	}
	inv, err := h.svc.SendProposal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "send proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// RenderPDF handles POST /proposals/{id}/pdf.
func (h *ProposalHandler) RenderPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "proposal ID")
	if !ok {
		return
	}
	view, err := h.svc.GetProposal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get proposal", err)
		return
	}
	url, err := h.svc.RenderDocument(r.Context(), view.Invoice)
	if err != nil {
		writeInternal(w, r, "render proposal pdf", err)
		return
	}
	if url == "" {
		writeError(w, http.StatusServiceUnavailable, "document generation is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pdf_url": url})
}

// GetByToken handles GET /public/proposals/{token}.
func (h *ProposalHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	token, ok := parseUUIDParam(w, r, "token", "proposal link")
	if !ok {
		return
	}
	view, err := h.svc.GetByToken(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, "get proposal by token", err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicResponse(view))
}

// Respond handles POST /public/proposals/{token}/respond.
func (h *ProposalHandler) Respond(w http.ResponseWriter, r *http.Request) {
	token, ok := parseUUIDParam(w, r, "token", "proposal link")
	if !ok {
		return
	}
	var req respondRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inv, err := h.svc.Respond(r.Context(), token, req.Action, req.Feedback)
	if err != nil {
		h.writeServiceError(w, r, "respond to proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": inv.Status})
}

// StartPayment handles POST /public/proposals/{token}/payment-intent.
func (h *ProposalHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	token, ok := parseUUIDParam(w, r, "token", "proposal link")
	if !ok {
		return
	}
	pi, err := h.svc.StartPayment(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, "start payment", err)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

func (h *ProposalHandler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case isValidationError(err) || isPricingError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProposalNotFound), errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrProposalNotEditable),
		errors.Is(err, service.ErrOrderLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeInternal(w, r, msg, err)
	}
}

// isValidationError checks if the error is a proposal validation error
// that should return 400 rather than 500.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrClientNameRequired) ||
		errors.Is(err, service.ErrInvalidClientEmail) ||
		errors.Is(err, service.ErrEventNameRequired) ||
		errors.Is(err, service.ErrNegativeTotal) ||
		errors.Is(err, service.ErrInvalidAction)
}

func toInvoiceResponse(inv database.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		OrderID:        inv.OrderID,
		ClientName:     inv.ClientName,
		ClientEmail:    inv.ClientEmail,
		ClientPhone:    textPtr(inv.ClientPhone),
		ClientCompany:  textPtr(inv.ClientCompany),
		Status:         inv.Status,
		Token:          inv.Token,
		Notes:          textPtr(inv.Notes),
		ClientFeedback: textPtr(inv.ClientFeedback),
		PdfUrl:         textPtr(inv.PdfUrl),
		SentAt:         timePtr(inv.SentAt),
		RespondedAt:    timePtr(inv.RespondedAt),
		PaidAt:         timePtr(inv.PaidAt),
		CreatedBy:      inv.CreatedBy,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func resultResponse(res *service.ProposalResult) proposalResponse {
	return proposalResponse{
		invoiceResponse: toInvoiceResponse(res.Invoice),
		Order:           toOrderResponse(res.Order),
		Pricing:         res.Snapshot.Totals(),
		PricingSource:   pricing.SourceSnapshot,
	}
}

func viewResponse(v *service.ProposalView) proposalResponse {
	return proposalResponse{
		invoiceResponse: toInvoiceResponse(v.Invoice),
		Order:           toOrderResponse(v.Order),
		Pricing:         v.Totals,
		PricingSource:   v.Source,
	}
}

func toPublicResponse(v *service.ProposalView) publicProposalResponse {
	return publicProposalResponse{
		InvoiceNumber:  v.Invoice.InvoiceNumber,
		ClientName:     v.Invoice.ClientName,
		ClientCompany:  textPtr(v.Invoice.ClientCompany),
		Status:         v.Invoice.Status,
		EventName:      v.Order.EventName,
		EventDate:      timePtr(v.Order.EventDate),
		EventLocation:  v.Order.EventLocation,
		GuestCount:     v.Order.GuestCount,
		Notes:          textPtr(v.Invoice.Notes),
		ClientFeedback: textPtr(v.Invoice.ClientFeedback),
		PdfUrl:         textPtr(v.Invoice.PdfUrl),
		Pricing:        v.Totals,
	}
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
