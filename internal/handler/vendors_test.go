package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/handler"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type mockVendorStore struct {
	vendors map[uuid.UUID]database.Vendor
}

func (m *mockVendorStore) GetVendorByID(_ context.Context, id uuid.UUID) (database.Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return database.Vendor{}, pgx.ErrNoRows
	}
	return v, nil
}

func (m *mockVendorStore) UpdateVendorStripeAccount(_ context.Context, arg database.UpdateVendorStripeAccountParams) (database.Vendor, error) {
	v, ok := m.vendors[arg.ID]
	if !ok {
		return database.Vendor{}, pgx.ErrNoRows
	}
	v.StripeAccountID = arg.StripeAccountID
	m.vendors[arg.ID] = v
	return v, nil
}

func (m *mockVendorStore) UpdateVendorBoost(_ context.Context, arg database.UpdateVendorBoostParams) (database.Vendor, error) {
	v, ok := m.vendors[arg.ID]
	if !ok {
		return database.Vendor{}, pgx.ErrNoRows
	}
	v.BoostPercentage = arg.BoostPercentage
	m.vendors[arg.ID] = v
	return v, nil
}

type stubConnect struct {
	created  int
	err      error
	returnTo string
}

func (s *stubConnect) CreateExpressAccount(context.Context, string, string, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.created++
	return "acct_123", nil
}

func (s *stubConnect) OnboardingLink(_ context.Context, accountID, _, returnURL string) (string, error) {
	s.returnTo = returnURL
	return "https://connect.stripe.test/onboard/" + accountID, nil
}

func (s *stubConnect) DashboardLink(_ context.Context, accountID string) (string, error) {
	return "https://connect.stripe.test/login/" + accountID, nil
}

type stubEarnings struct{}

func (stubEarnings) VendorEarnings(_ context.Context, vendorID uuid.UUID) (*service.Earnings, error) {
	if vendorID == uuid.Nil {
		return nil, service.ErrVendorNotFound
	}
	return &service.Earnings{
		VendorID:   vendorID,
		Gross:      decimal.NewFromInt(1000),
		Commission: decimal.NewFromInt(150),
		Net:        decimal.NewFromInt(850),
		Orders:     []service.OrderEarning{},
	}, nil
}

func setupVendorRouter(store *mockVendorStore, connect *stubConnect) *chi.Mux {
	h := handler.NewVendorHandler(store, connect, stubEarnings{}, "https://app.test")
	r := chi.NewRouter()
	r.Route("/vendors/{vid}", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

func newVendorStore() (*mockVendorStore, uuid.UUID) {
	id := uuid.New()
	return &mockVendorStore{vendors: map[uuid.UUID]database.Vendor{
		id: {ID: id, BusinessName: "Blue Plate", Email: "chef@blueplate.io"},
	}}, id
}

func TestVendorStripeAccount_CreatedOnce(t *testing.T) {
	store, id := newVendorStore()
	connect := &stubConnect{}
	router := setupVendorRouter(store, connect)

	rr := postJSON(t, router, "/vendors/"+id.String()+"/stripe/account", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp["stripe_account_id"] != "acct_123" {
		t.Errorf("account: got %v", resp["stripe_account_id"])
	}

	rr = postJSON(t, router, "/vendors/"+id.String()+"/stripe/account", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second call: got %d", rr.Code)
	}
	if connect.created != 1 {
		t.Errorf("stripe accounts created: got %d, want 1", connect.created)
	}
}

func TestVendorStripeAccount_NotConfigured(t *testing.T) {
	store, id := newVendorStore()
	rr := postJSON(t, setupVendorRouter(store, &stubConnect{err: payments.ErrNotConfigured}), "/vendors/"+id.String()+"/stripe/account", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestVendorOnboardingLink(t *testing.T) {
	store, id := newVendorStore()
	connect := &stubConnect{}
	router := setupVendorRouter(store, connect)

	rr := postJSON(t, router, "/vendors/"+id.String()+"/stripe/onboarding-link", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("without account: got %d, want 409", rr.Code)
	}

	v := store.vendors[id]
	v.StripeAccountID = pgtype.Text{String: "acct_9", Valid: true}
	store.vendors[id] = v

	rr = postJSON(t, router, "/vendors/"+id.String()+"/stripe/onboarding-link", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["url"] != "https://connect.stripe.test/onboard/acct_9" {
		t.Errorf("url: got %v", resp["url"])
	}
	if connect.returnTo != "https://app.test/vendor/payouts" {
		t.Errorf("return url: got %q", connect.returnTo)
	}

	rr = postJSON(t, router, "/vendors/"+id.String()+"/stripe/login-link", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login link: got %d", rr.Code)
	}
}

func TestVendorEarnings(t *testing.T) {
	store, id := newVendorStore()
	rr := doJSON(t, setupVendorRouter(store, &stubConnect{}), "GET", "/vendors/"+id.String()+"/earnings", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["gross"] != "1000" || resp["net"] != "850" {
		t.Errorf("earnings: got %v", resp)
	}

	rr = doJSON(t, setupVendorRouter(store, &stubConnect{}), "GET", "/vendors/"+uuid.Nil.String()+"/earnings", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown vendor: got %d, want 404", rr.Code)
	}
}

func TestVendorBoost(t *testing.T) {
	store, id := newVendorStore()
	router := setupVendorRouter(store, &stubConnect{})

	rr := doJSON(t, router, "PUT", "/vendors/"+id.String()+"/boost", map[string]string{"boost_percentage": "5"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp["boost_percentage"] != "5.00" {
		t.Errorf("boost: got %v", resp["boost_percentage"])
	}

	rr = doJSON(t, router, "PUT", "/vendors/"+id.String()+"/boost", map[string]string{"boost_percentage": "150"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("out of range: got %d, want 400", rr.Code)
	}
}
