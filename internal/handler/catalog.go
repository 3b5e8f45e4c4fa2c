package handler

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// CatalogStore defines the database methods needed by the catalog handlers.
type CatalogStore interface {
	ListServices(ctx context.Context, arg database.ListServicesParams) ([]database.Service, error)
	CountServices(ctx context.Context, arg database.CountServicesParams) (int64, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (database.Service, error)
	CreateService(ctx context.Context, arg database.CreateServiceParams) (database.Service, error)
	UpdateService(ctx context.Context, arg database.UpdateServiceParams) (database.Service, error)
}

// CatalogHandler serves marketplace browsing and vendor service management.
type CatalogHandler struct {
	store     CatalogStore
	sanitizer *bluemonday.Policy
}

func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store, sanitizer: bluemonday.StrictPolicy()}
}

// RegisterRoutes registers the public browse endpoints.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.List)
	r.Get("/services/{id}", h.Get)
}

// RegisterVendorRoutes registers service management. Expected to be mounted
// inside /vendors/{vid} behind RequireVendor.
func (h *CatalogHandler) RegisterVendorRoutes(r chi.Router) {
	r.Get("/services", h.ListVendor)
	r.Post("/services", h.Create)
	r.Put("/services/{id}", h.Update)
}

// --- Request / Response types ---

type serviceRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Type        string          `json:"type" validate:"required"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	PriceType   string          `json:"price_type" validate:"required,oneof=flat hourly per_person"`
	Details     json.RawMessage `json:"service_details"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool           `json:"is_active"`
}

type serviceResponse struct {
	ID           uuid.UUID       `json:"id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Description  *string         `json:"description"`
	Price        string          `json:"price"`
	PriceType    string          `json:"price_type"`
	Details      json.RawMessage `json:"service_details"`
	ImageURL     *string         `json:"image_url"`
	IsActive     bool            `json:"is_active"`
	RankingScore string          `json:"ranking_score"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toServiceResponse(s database.Service) serviceResponse {
	details := json.RawMessage(s.Details)
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return serviceResponse{
		ID:           s.ID,
		VendorID:     s.VendorID,
		Name:         s.Name,
		Type:         s.Type,
		Description:  textPtr(s.Description),
		Price:        numericToString(s.Price),
		PriceType:    s.PriceType,
		Details:      details,
		ImageURL:     textPtr(s.ImageUrl),
		IsActive:     s.IsActive,
		RankingScore: numericToString(s.RankingScore),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

var serviceTypes = map[string]bool{
	enum.ServiceTypeCatering:     true,
	enum.ServiceTypeVenue:        true,
	enum.ServiceTypeStaff:        true,
	enum.ServiceTypePartyRentals: true,
}

// --- Handlers ---

// List handles GET /services?type=&q=&min_price=&max_price=&vendor_id=.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseServiceFilter(w, r)
	if !ok {
		return
	}
	h.list(w, r, filter)
}

// ListVendor handles GET /vendors/{vid}/services.
func (h *CatalogHandler) ListVendor(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return
	}
	filter, ok := parseServiceFilter(w, r)
	if !ok {
		return
	}
	filter.VendorID = pgtype.UUID{Bytes: vendorID, Valid: true}
	h.list(w, r, filter)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request, filter database.CountServicesParams) {
	page := parsePage(r)
	services, err := h.store.ListServices(r.Context(), database.ListServicesParams{
		Type:     filter.Type,
		Search:   filter.Search,
		MinPrice: filter.MinPrice,
		MaxPrice: filter.MaxPrice,
		VendorID: filter.VendorID,
		Limit:    int32(page.Limit),
		Offset:   page.offset(),
	})
	if err != nil {
		writeInternal(w, r, "list services", err)
		return
	}
	total, err := h.store.CountServices(r.Context(), filter)
	if err != nil {
		writeInternal(w, r, "count services", err)
		return
	}

	resp := make([]serviceResponse, len(services))
	for i, s := range services {
		resp[i] = toServiceResponse(s)
	}
	writeJSON(w, http.StatusOK, newPaginated(resp, page, total))
}

func parseServiceFilter(w http.ResponseWriter, r *http.Request) (database.CountServicesParams, bool) {
	q := r.URL.Query()
	var f database.CountServicesParams

	if s := q.Get("type"); s != "" {
		f.Type = optText(pricing.NormalizeServiceType(s))
	}
	f.Search = optText(strings.TrimSpace(q.Get("q")))

	for _, p := range []struct {
		key string
		dst *pgtype.Numeric
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		s := q.Get(p.key)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid "+p.key)
			return f, false
		}
		*p.dst = decimalToNumeric(d)
	}

	if s := q.Get("vendor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vendor_id")
			return f, false
		}
		f.VendorID = pgtype.UUID{Bytes: id, Valid: true}
	}
	return f, true
}

// Get handles GET /services/{id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "service ID")
	if !ok {
		return
	}

	svc, err := h.store.GetServiceByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeInternal(w, r, "get service", err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

// Create handles POST /vendors/{vid}/services.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return
	}

	var req serviceRequest
	if !h.decodeService(w, r, &req) {
		return
	}

	svc, err := h.store.CreateService(r.Context(), database.CreateServiceParams{
		VendorID:    vendorID,
		Name:        req.Name,
		Type:        req.Type,
		Description: optText(req.Description),
		Price:       decimalToNumeric(req.Price),
		PriceType:   req.PriceType,
		Details:     req.Details,
		ImageUrl:    optText(req.ImageURL),
	})
	if err != nil {
		writeInternal(w, r, "create service", err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceResponse(svc))
}

// Update handles PUT /vendors/{vid}/services/{id}. The vendor filter in the
// query keeps vendors from editing each other's services.
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id", "service ID")
	if !ok {
		return
	}

	var req serviceRequest
	if !h.decodeService(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	svc, err := h.store.UpdateService(r.Context(), database.UpdateServiceParams{
		ID:          id,
		VendorID:    vendorID,
		Name:        req.Name,
		Description: optText(req.Description),
		Price:       decimalToNumeric(req.Price),
		PriceType:   req.PriceType,
		Details:     req.Details,
		ImageUrl:    optText(req.ImageURL),
		IsActive:    active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeInternal(w, r, "update service", err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

// decodeService validates and normalizes a service body in place.
func (h *CatalogHandler) decodeService(w http.ResponseWriter, r *http.Request, req *serviceRequest) bool {
	if !decodeAndValidate(w, r, req) {
		return false
	}

	req.Type = pricing.NormalizeServiceType(req.Type)
	if !serviceTypes[req.Type] {
		writeError(w, http.StatusBadRequest, "invalid service type")
		return false
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return false
	}

	if len(req.Details) == 0 || string(req.Details) == "null" {
		req.Details = json.RawMessage(`{}`)
	}
	var probe map[string]any
	if err := json.Unmarshal(req.Details, &probe); err != nil {
		writeError(w, http.StatusBadRequest, "service_details must be an object")
		return false
	}

	req.Name = h.plain(req.Name)
	req.Description = h.plain(req.Description)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return false
	}
	return true
}

// plain strips markup from vendor-entered text.
func (h *CatalogHandler) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(s)))
}
