package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// VendorStore defines the database methods needed by vendor handlers.
type VendorStore interface {
	GetVendorByID(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	UpdateVendorStripeAccount(ctx context.Context, arg database.UpdateVendorStripeAccountParams) (database.Vendor, error)
	UpdateVendorBoost(ctx context.Context, arg database.UpdateVendorBoostParams) (database.Vendor, error)
}

// StripeConnect is satisfied by *payments.Client.
type StripeConnect interface {
	CreateExpressAccount(ctx context.Context, vendorID, email, businessName string) (string, error)
	OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	DashboardLink(ctx context.Context, accountID string) (string, error)
}

// EarningsReporter is satisfied by *service.EarningsService.
type EarningsReporter interface {
	VendorEarnings(ctx context.Context, vendorID uuid.UUID) (*service.Earnings, error)
}

type VendorHandler struct {
	store    VendorStore
	stripe   StripeConnect
	earnings EarningsReporter
	baseURL  string
}

// NewVendorHandler creates a VendorHandler. baseURL is the public site that
// Stripe sends vendors back to after onboarding.
func NewVendorHandler(store VendorStore, stripe StripeConnect, earnings EarningsReporter, baseURL string) *VendorHandler {
	return &VendorHandler{store: store, stripe: stripe, earnings: earnings, baseURL: baseURL}
}

// RegisterRoutes registers vendor self-service endpoints. Expected to be
// mounted inside /vendors/{vid} behind RequireVendor.
func (h *VendorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Get("/earnings", h.Earnings)
	r.Post("/stripe/account", h.CreateStripeAccount)
	r.Post("/stripe/onboarding-link", h.OnboardingLink)
	r.Post("/stripe/login-link", h.LoginLink)
}

// RegisterAdminRoutes registers admin-only vendor endpoints under /vendors/{vid}.
func (h *VendorHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/boost", h.UpdateBoost)
}

type vendorResponse struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	BusinessName    string    `json:"business_name"`
	Email           string    `json:"email"`
	Phone           *string   `json:"phone"`
	Address         *string   `json:"address"`
	Lat             *float64  `json:"lat"`
	Lng             *float64  `json:"lng"`
	StripeAccountID *string   `json:"stripe_account_id"`
	CommissionRate  string    `json:"commission_rate"`
	BoostPercentage string    `json:"boost_percentage"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type boostRequest struct {
	BoostPercentage decimal.Decimal `json:"boost_percentage"`
}

type linkResponse struct {
	URL string `json:"url"`
}

func (h *VendorHandler) Get(w http.ResponseWriter, r *http.Request) {
	vendor, ok := h.loadVendor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return
	}
	earnings, err := h.earnings.VendorEarnings(r.Context(), vendorID)
	if err != nil {
		if errors.Is(err, service.ErrVendorNotFound) {
			writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		writeInternal(w, r, "vendor earnings", err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

// CreateStripeAccount opens a Connect Express account. Vendors that already
// have one get it back unchanged.
func (h *VendorHandler) CreateStripeAccount(w http.ResponseWriter, r *http.Request) {
	vendor, ok := h.loadVendor(w, r)
	if !ok {
		return
	}
	if vendor.StripeAccountID.Valid {
		writeJSON(w, http.StatusOK, toVendorResponse(vendor))
		return
	}

	accountID, err := h.stripe.CreateExpressAccount(r.Context(), vendor.ID.String(), vendor.Email, vendor.BusinessName)
	if err != nil {
		h.writeStripeError(w, r, "create stripe account", err)
		return
	}
	vendor, err = h.store.UpdateVendorStripeAccount(r.Context(), database.UpdateVendorStripeAccountParams{
		ID:              vendor.ID,
		StripeAccountID: optText(accountID),
	})
	if err != nil {
		writeInternal(w, r, "save stripe account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *VendorHandler) OnboardingLink(w http.ResponseWriter, r *http.Request) {
	vendor, ok := h.loadVendor(w, r)
	if !ok {
		return
	}
	if !vendor.StripeAccountID.Valid {
		writeError(w, http.StatusConflict, "vendor has no stripe account")
		return
	}
	url, err := h.stripe.OnboardingLink(r.Context(), vendor.StripeAccountID.String,
		h.baseURL+"/vendor/payouts?refresh=1", h.baseURL+"/vendor/payouts")
	if err != nil {
		h.writeStripeError(w, r, "create onboarding link", err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{URL: url})
}

func (h *VendorHandler) LoginLink(w http.ResponseWriter, r *http.Request) {
	vendor, ok := h.loadVendor(w, r)
	if !ok {
		return
	}
	if !vendor.StripeAccountID.Valid {
		writeError(w, http.StatusConflict, "vendor has no stripe account")
		return
	}
	url, err := h.stripe.DashboardLink(r.Context(), vendor.StripeAccountID.String)
	if err != nil {
		h.writeStripeError(w, r, "create login link", err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{URL: url})
}

// UpdateBoost sets the extra commission a vendor pays for higher ranking.
func (h *VendorHandler) UpdateBoost(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return
	}
	var req boostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.BoostPercentage.IsNegative() || req.BoostPercentage.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "boost_percentage must be between 0 and 100")
		return
	}

	vendor, err := h.store.UpdateVendorBoost(r.Context(), database.UpdateVendorBoostParams{
		ID:              vendorID,
		BoostPercentage: decimalToNumeric(req.BoostPercentage),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		writeInternal(w, r, "update vendor boost", err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorHandler) loadVendor(w http.ResponseWriter, r *http.Request) (database.Vendor, bool) {
	vendorID, ok := parseUUIDParam(w, r, "vid", "vendor ID")
	if !ok {
		return database.Vendor{}, false
	}
	vendor, err := h.store.GetVendorByID(r.Context(), vendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "vendor not found")
			return database.Vendor{}, false
		}
		writeInternal(w, r, "get vendor", err)
		return database.Vendor{}, false
	}
	return vendor, true
}

func (h *VendorHandler) writeStripeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, payments.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "payouts are not available")
		return
	}
	writeInternal(w, r, msg, err)
}

func toVendorResponse(v database.Vendor) vendorResponse {
	resp := vendorResponse{
		ID:              v.ID,
		UserID:          v.UserID,
		BusinessName:    v.BusinessName,
		Email:           v.Email,
		Phone:           textPtr(v.Phone),
		Address:         textPtr(v.Address),
		StripeAccountID: textPtr(v.StripeAccountID),
		CommissionRate:  numericToString(v.CommissionRate),
		BoostPercentage: numericToString(v.BoostPercentage),
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
	if v.Lat.Valid {
		resp.Lat = &v.Lat.Float64
	}
	if v.Lng.Valid {
		resp.Lng = &v.Lng.Float64
	}
	return resp
}
