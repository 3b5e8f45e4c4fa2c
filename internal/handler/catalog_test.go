package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type mockCatalogStore struct {
	services   map[uuid.UUID]database.Service
	listArg    database.ListServicesParams
	countArg   database.CountServicesParams
	lastCreate database.CreateServiceParams
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{services: map[uuid.UUID]database.Service{}}
}

func (m *mockCatalogStore) ListServices(_ context.Context, arg database.ListServicesParams) ([]database.Service, error) {
	m.listArg = arg
	var out []database.Service
	for _, s := range m.services {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockCatalogStore) CountServices(_ context.Context, arg database.CountServicesParams) (int64, error) {
	m.countArg = arg
	return int64(len(m.services)), nil
}

func (m *mockCatalogStore) GetServiceByID(_ context.Context, id uuid.UUID) (database.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return database.Service{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockCatalogStore) CreateService(_ context.Context, arg database.CreateServiceParams) (database.Service, error) {
	m.lastCreate = arg
	s := database.Service{
		ID: uuid.New(), VendorID: arg.VendorID, Name: arg.Name, Type: arg.Type,
		Description: arg.Description, Price: arg.Price, PriceType: arg.PriceType,
		Details: arg.Details, IsActive: true,
	}
	m.services[s.ID] = s
	return s, nil
}

func (m *mockCatalogStore) UpdateService(_ context.Context, arg database.UpdateServiceParams) (database.Service, error) {
	s, ok := m.services[arg.ID]
	if !ok || s.VendorID != arg.VendorID {
		return database.Service{}, pgx.ErrNoRows
	}
	s.Name = arg.Name
	s.Price = arg.Price
	s.IsActive = arg.IsActive
	m.services[s.ID] = s
	return s, nil
}

func setupCatalogRouter(store *mockCatalogStore) *chi.Mux {
	h := handler.NewCatalogHandler(store)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Route("/vendors/{vid}", h.RegisterVendorRoutes)
	return r
}

func TestListServices_Filters(t *testing.T) {
	store := newMockCatalogStore()
	vendorID := uuid.New()

	rr := doJSON(t, setupCatalogRouter(store), "GET",
		"/services?type=Party_Rentals&q=tent&min_price=10&max_price=500.5&vendor_id="+vendorID.String()+"&page=2&limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	arg := store.listArg
	if arg.Type.String != "party-rentals" {
		t.Errorf("type should be normalized, got %q", arg.Type.String)
	}
	if arg.Search.String != "tent" {
		t.Errorf("search: got %q", arg.Search.String)
	}
	if !arg.MinPrice.Valid || !arg.MaxPrice.Valid {
		t.Error("price bounds should be set")
	}
	if arg.VendorID != (pgtype.UUID{Bytes: vendorID, Valid: true}) {
		t.Errorf("vendor filter: got %v", arg.VendorID)
	}
	if arg.Limit != 10 || arg.Offset != 10 {
		t.Errorf("limit/offset: got %d/%d", arg.Limit, arg.Offset)
	}
	if store.countArg.Search != arg.Search {
		t.Error("count should use the same filter")
	}
}

func TestListServices_BadPrice(t *testing.T) {
	rr := doJSON(t, setupCatalogRouter(newMockCatalogStore()), "GET", "/services?min_price=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestGetService_NotFound(t *testing.T) {
	rr := doJSON(t, setupCatalogRouter(newMockCatalogStore()), "GET", "/services/"+uuid.NewString(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestCreateService(t *testing.T) {
	store := newMockCatalogStore()
	vendorID := uuid.New()

	rr := postJSON(t, setupCatalogRouter(store), "/vendors/"+vendorID.String()+"/services", map[string]interface{}{
		"name":            "<b>Tents</b> & Tables",
		"type":            "rentals",
		"price":           "125.50",
		"price_type":      "flat",
		"service_details": map[string]interface{}{"items": []interface{}{}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	if store.lastCreate.VendorID != vendorID {
		t.Error("service should belong to the path vendor")
	}
	if store.lastCreate.Name != "Tents & Tables" {
		t.Errorf("name should be stripped of markup, got %q", store.lastCreate.Name)
	}
	if store.lastCreate.Type != "party-rentals" {
		t.Errorf("type: got %q", store.lastCreate.Type)
	}
	resp := decodeResponse(t, rr)
	if resp["price"] != "125.50" {
		t.Errorf("price: got %v", resp["price"])
	}
}

func TestCreateService_Invalid(t *testing.T) {
	router := setupCatalogRouter(newMockCatalogStore())
	path := "/vendors/" + uuid.NewString() + "/services"

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown type", map[string]interface{}{"name": "X", "type": "fireworks", "price_type": "flat"}},
		{"negative price", map[string]interface{}{"name": "X", "type": "venue", "price": "-1", "price_type": "flat"}},
		{"bad price type", map[string]interface{}{"name": "X", "type": "venue", "price_type": "weekly"}},
		{"details not object", map[string]interface{}{"name": "X", "type": "venue", "price_type": "flat", "service_details": []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := postJSON(t, router, path, tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400; body: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateService_OtherVendor(t *testing.T) {
	store := newMockCatalogStore()
	owner := uuid.New()
	svc := database.Service{ID: uuid.New(), VendorID: owner, Name: "Loft", Type: "venue"}
	store.services[svc.ID] = svc

	rr := doJSON(t, setupCatalogRouter(store), "PUT", "/vendors/"+uuid.NewString()+"/services/"+svc.ID.String(), map[string]interface{}{
		"name": "Stolen", "type": "venue", "price": "1", "price_type": "flat",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
	if store.services[svc.ID].Name != "Loft" {
		t.Error("service must not change")
	}
}
