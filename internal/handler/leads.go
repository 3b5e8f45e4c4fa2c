package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LeadStore defines the database methods needed by lead handlers.
type LeadStore interface {
	ListLeads(ctx context.Context, arg database.ListLeadsParams) ([]database.Lead, error)
	CountLeads(ctx context.Context, arg database.CountLeadsParams) (int64, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (database.Lead, error)
	CreateLead(ctx context.Context, arg database.CreateLeadParams) (database.Lead, error)
	UpdateLead(ctx context.Context, arg database.UpdateLeadParams) (database.Lead, error)
	UpdateLeadStatus(ctx context.Context, arg database.UpdateLeadStatusParams) (database.Lead, error)
	DeleteLead(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// LeadServicer is satisfied by *service.LeadService.
type LeadServicer interface {
	Board(ctx context.Context) ([]service.BoardColumn, error)
	Duplicates(ctx context.Context, id uuid.UUID) ([]database.Lead, error)
	DuplicatesOf(ctx context.Context, email string, exclude *uuid.UUID) ([]database.Lead, error)
	ExportCSV(ctx context.Context) ([]byte, error)
}

type LeadHandler struct {
	store LeadStore
	svc   LeadServicer
}

func NewLeadHandler(store LeadStore, svc LeadServicer) *LeadHandler {
	return &LeadHandler{store: store, svc: svc}
}

// RegisterRoutes registers lead endpoints. Expected to be mounted at /leads.
func (h *LeadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/board", h.Board)
	r.Get("/export.csv", h.Export)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/duplicates", h.Duplicates)
}

type leadRequest struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"max=50"`
	Source      string `json:"source" validate:"max=100"`
	Status      string `json:"status" validate:"omitempty,oneof=new contacted qualified proposal won lost"`
	Notes       string `json:"notes"`
}

type leadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified proposal won lost"`
}

type leadResponse struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone"`
	Source      *string   `json:"source"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// createLeadResponse flags possible duplicates without blocking the insert.
type createLeadResponse struct {
	leadResponse
	PossibleDuplicates []leadResponse `json:"possible_duplicates"`
}

type boardColumnResponse struct {
	Status string         `json:"status"`
	Leads  []leadResponse `json:"leads"`
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	status := optText(r.URL.Query().Get("status"))
	search := optText(strings.TrimSpace(r.URL.Query().Get("search")))

	leads, err := h.store.ListLeads(r.Context(), database.ListLeadsParams{
		Status: status,
		Search: search,
		Limit:  int32(page.Limit),
		Offset: page.offset(),
	})
	if err != nil {
		writeInternal(w, r, "list leads", err)
		return
	}
	total, err := h.store.CountLeads(r.Context(), database.CountLeadsParams{Status: status, Search: search})
	if err != nil {
		writeInternal(w, r, "count leads", err)
		return
	}
	writeJSON(w, http.StatusOK, newPaginated(toLeadResponses(leads), page, total))
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = "new"
	}

	dups, err := h.svc.DuplicatesOf(r.Context(), req.Email, nil)
	if err != nil {
		writeInternal(w, r, "find duplicate leads", err)
		return
	}

	lead, err := h.store.CreateLead(r.Context(), database.CreateLeadParams{
		CompanyName: strings.TrimSpace(req.CompanyName),
		ContactName: strings.TrimSpace(req.ContactName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       optText(req.Phone),
		Source:      optText(req.Source),
		Status:      req.Status,
		Notes:       optText(req.Notes),
	})
	if err != nil {
		writeInternal(w, r, "create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, createLeadResponse{
		leadResponse:       toLeadResponse(lead),
		PossibleDuplicates: toLeadResponses(dups),
	})
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "lead ID")
	if !ok {
		return
	}
	lead, err := h.store.GetLeadByID(r.Context(), id)
	if err != nil {
		h.writeLeadError(w, r, "get lead", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "lead ID")
	if !ok {
		return
	}
	var req leadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = "new"
	}

	lead, err := h.store.UpdateLead(r.Context(), database.UpdateLeadParams{
		ID:          id,
		CompanyName: strings.TrimSpace(req.CompanyName),
		ContactName: strings.TrimSpace(req.ContactName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       optText(req.Phone),
		Source:      optText(req.Source),
		Status:      req.Status,
		Notes:       optText(req.Notes),
	})
	if err != nil {
		h.writeLeadError(w, r, "update lead", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// UpdateStatus moves a lead between board columns.
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "lead ID")
	if !ok {
		return
	}
	var req leadStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lead, err := h.store.UpdateLeadStatus(r.Context(), database.UpdateLeadStatusParams{ID: id, Status: req.Status})
	if err != nil {
		h.writeLeadError(w, r, "update lead status", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "lead ID")
	if !ok {
		return
	}
	if _, err := h.store.DeleteLead(r.Context(), id); err != nil {
		h.writeLeadError(w, r, "delete lead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) Board(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.Board(r.Context())
	if err != nil {
		writeInternal(w, r, "lead board", err)
		return
	}
	resp := make([]boardColumnResponse, len(cols))
	for i, c := range cols {
		resp[i] = boardColumnResponse{Status: c.Status, Leads: toLeadResponses(c.Leads)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LeadHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "lead ID")
	if !ok {
		return
	}
	dups, err := h.svc.Duplicates(r.Context(), id)
	if err != nil {
		h.writeLeadError(w, r, "find duplicate leads", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponses(dups))
}

func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportCSV(r.Context())
	if err != nil {
		writeInternal(w, r, "export leads", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (h *LeadHandler) writeLeadError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, service.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeInternal(w, r, msg, err)
}

func toLeadResponse(l database.Lead) leadResponse {
	return leadResponse{
		ID:          l.ID,
		CompanyName: l.CompanyName,
		ContactName: l.ContactName,
		Email:       l.Email,
		Phone:       textPtr(l.Phone),
		Source:      textPtr(l.Source),
		Status:      l.Status,
		Notes:       textPtr(l.Notes),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toLeadResponses(leads []database.Lead) []leadResponse {
	out := make([]leadResponse, len(leads))
	for i, l := range leads {
		out[i] = toLeadResponse(l)
	}
	return out
}
