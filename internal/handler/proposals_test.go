package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/eventmarket/api/internal/auth"
	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/handler"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock ProposalServicer ---

type mockProposalService struct {
	createFn       func(ctx context.Context, req service.CreateProposalRequest) (*service.ProposalResult, error)
	updateFn       func(ctx context.Context, id uuid.UUID, req service.UpdateProposalRequest) (*service.ProposalResult, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*service.ProposalView, error)
	getByTokenFn   func(ctx context.Context, token uuid.UUID) (*service.ProposalView, error)
	sendFn         func(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	renderFn       func(ctx context.Context, inv database.Invoice) (string, error)
	respondFn      func(ctx context.Context, token uuid.UUID, action, feedback string) (database.Invoice, error)
	startPaymentFn func(ctx context.Context, token uuid.UUID) (payments.PaymentIntent, error)
}

func (m *mockProposalService) CreateProposal(ctx context.Context, req service.CreateProposalRequest) (*service.ProposalResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockProposalService) UpdateProposal(ctx context.Context, id uuid.UUID, req service.UpdateProposalRequest) (*service.ProposalResult, error) {
	return m.updateFn(ctx, id, req)
}

func (m *mockProposalService) GetProposal(ctx context.Context, id uuid.UUID) (*service.ProposalView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, service.ErrProposalNotFound
}

func (m *mockProposalService) GetByToken(ctx context.Context, token uuid.UUID) (*service.ProposalView, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, service.ErrProposalNotFound
}

func (m *mockProposalService) SendProposal(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	return m.sendFn(ctx, id)
}

func (m *mockProposalService) RenderDocument(ctx context.Context, inv database.Invoice) (string, error) {
	if m.renderFn != nil {
		return m.renderFn(ctx, inv)
	}
	return "", nil
}

func (m *mockProposalService) Respond(ctx context.Context, token uuid.UUID, action, feedback string) (database.Invoice, error) {
	return m.respondFn(ctx, token, action, feedback)
}

func (m *mockProposalService) StartPayment(ctx context.Context, token uuid.UUID) (payments.PaymentIntent, error) {
	return m.startPaymentFn(ctx, token)
}

type mockInvoiceLister struct {
	invoices []database.Invoice
}

func (m *mockInvoiceLister) ListInvoices(_ context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error) {
	return m.invoices, nil
}

func (m *mockInvoiceLister) CountInvoices(_ context.Context, _ pgtype.Text) (int64, error) {
	return int64(len(m.invoices)), nil
}

func setupProposalRouter(svc *mockProposalService, store *mockInvoiceLister, claims *auth.Claims) *chi.Mux {
	if store == nil {
		store = &mockInvoiceLister{}
	}
	h := handler.NewProposalHandler(svc, store)
	r := chi.NewRouter()
	r.Route("/public/proposals", h.RegisterPublicRoutes)
	r.Group(func(r chi.Router) {
		r.Use(withUser(claims))
		r.Route("/proposals", h.RegisterRoutes)
	})
	return r
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func proposalBody() map[string]interface{} {
	return map[string]interface{}{
		"client_name":    "Dana Client",
		"client_email":   "dana@acme.io",
		"event_name":     "Offsite",
		"event_location": "Austin, TX",
		"guest_count":    40,
		"services":       []map[string]interface{}{{"id": "s1", "type": "venue", "price": 500, "quantity": 1}},
		"selected_items": map[string]interface{}{},
		"custom_adjustments": []map[string]interface{}{
			{"id": "a1", "label": "Early bird", "type": "percentage", "mode": "discount", "value": "10"},
		},
	}
}

func sampleResult() *service.ProposalResult {
	snap := pricing.NewSnapshot(pricing.Totals{Total: decimal.RequireFromString("450.00")}, testNow)
	return &service.ProposalResult{
		Invoice:  database.Invoice{ID: uuid.New(), InvoiceNumber: "INV-1", Status: "draft", Token: uuid.New()},
		Order:    database.Order{ID: uuid.New(), OrderNumber: "ORD-1"},
		Snapshot: snap,
	}
}

// --- Tests ---

func TestProposalCreate(t *testing.T) {
	userID := uuid.New()
	var got service.CreateProposalRequest
	svc := &mockProposalService{
		createFn: func(_ context.Context, req service.CreateProposalRequest) (*service.ProposalResult, error) {
			got = req
			return sampleResult(), nil
		},
	}
	rr := postJSON(t, setupProposalRouter(svc, nil, &auth.Claims{UserID: userID, Role: "admin"}), "/proposals", proposalBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	if got.CreatedBy != userID {
		t.Errorf("created_by: got %s, want %s", got.CreatedBy, userID)
	}
	if got.EventLocation != "Austin, TX" || got.Quote.EventLocation != "Austin, TX" {
		t.Errorf("event location not passed through: %q / %q", got.EventLocation, got.Quote.EventLocation)
	}
	if len(got.Quote.Adjustments) != 1 || got.Quote.Adjustments[0].Mode != "discount" {
		t.Errorf("adjustments: got %+v", got.Quote.Adjustments)
	}

	resp := decodeResponse(t, rr)
	if resp["invoice_number"] != "INV-1" || resp["pricing_source"] != "snapshot" {
		t.Errorf("response: got %v", resp)
	}
	if total := resp["pricing"].(map[string]interface{})["total"]; total != "450" {
		t.Errorf("total: got %v", total)
	}
}

func TestProposalCreate_ValidationFailed(t *testing.T) {
	body := proposalBody()
	body["client_email"] = "not-an-email"
	delete(body, "event_name")

	rr := postJSON(t, setupProposalRouter(&mockProposalService{}, nil, adminClaims()), "/proposals", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	fields := decodeResponse(t, rr)["fields"].(map[string]interface{})
	if fields["client_email"] == nil || fields["event_name"] == nil {
		t.Errorf("fields: got %v", fields)
	}
}

func TestProposalCreate_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"negative total", service.ErrNegativeTotal, http.StatusBadRequest},
		{"incomplete combo", fmt.Errorf("Buffet: %w", pricing.ErrComboIncomplete), http.StatusBadRequest},
		{"order not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"order locked", service.ErrOrderLocked, http.StatusConflict},
		{"db failure", fmt.Errorf("commit tx: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProposalService{
				createFn: func(context.Context, service.CreateProposalRequest) (*service.ProposalResult, error) {
					return nil, tt.err
				},
			}
			rr := postJSON(t, setupProposalRouter(svc, nil, adminClaims()), "/proposals", proposalBody())
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestProposalList(t *testing.T) {
	store := &mockInvoiceLister{invoices: []database.Invoice{{ID: uuid.New(), InvoiceNumber: "INV-1", Status: "sent"}}}
	rr := doJSON(t, setupProposalRouter(&mockProposalService{}, store, adminClaims()), "GET", "/proposals", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if data := resp["data"].([]interface{}); len(data) != 1 {
		t.Errorf("data: got %d items", len(data))
	}
}

func TestProposalUpdate_NotEditable(t *testing.T) {
	svc := &mockProposalService{
		updateFn: func(context.Context, uuid.UUID, service.UpdateProposalRequest) (*service.ProposalResult, error) {
			return nil, service.ErrProposalNotEditable
		},
	}
	rr := doJSON(t, setupProposalRouter(svc, nil, adminClaims()), "PUT", "/proposals/"+uuid.NewString(), proposalBody())
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rr.Code)
	}
}

func TestProposalSend(t *testing.T) {
	id := uuid.New()
	svc := &mockProposalService{
		sendFn: func(_ context.Context, got uuid.UUID) (database.Invoice, error) {
			if got != id {
				return database.Invoice{}, service.ErrProposalNotFound
			}
			return database.Invoice{ID: id, Status: "sent"}, nil
		},
	}
	router := setupProposalRouter(svc, nil, adminClaims())

	rr := postJSON(t, router, "/proposals/"+id.String()+"/send", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["status"] != "sent" {
		t.Errorf("status field: got %v", resp["status"])
	}

	rr = postJSON(t, router, "/proposals/"+uuid.NewString()+"/send", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown proposal: got %d, want 404", rr.Code)
	}
}

func TestProposalRenderPDF_NotConfigured(t *testing.T) {
	svc := &mockProposalService{
		getFn: func(_ context.Context, id uuid.UUID) (*service.ProposalView, error) {
			return &service.ProposalView{Invoice: database.Invoice{ID: id}}, nil
		},
	}
	rr := postJSON(t, setupProposalRouter(svc, nil, adminClaims()), "/proposals/"+uuid.NewString()+"/pdf", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestPublicProposal_GetByToken(t *testing.T) {
	token := uuid.New()
	svc := &mockProposalService{
		getByTokenFn: func(_ context.Context, got uuid.UUID) (*service.ProposalView, error) {
			if got != token {
				return nil, service.ErrProposalNotFound
			}
			return &service.ProposalView{
				Invoice: database.Invoice{InvoiceNumber: "INV-9", Status: "sent", Token: token},
				Order:   database.Order{EventName: "Gala"},
				Totals:  pricing.Totals{Total: decimal.NewFromInt(1200)},
				Source:  pricing.SourceSnapshot,
			}, nil
		},
	}
	router := setupProposalRouter(svc, nil, nil)

	rr := doJSON(t, router, "GET", "/public/proposals/"+token.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["event_name"] != "Gala" || resp["invoice_number"] != "INV-9" {
		t.Errorf("response: got %v", resp)
	}
	if _, leaked := resp["token"]; leaked {
		t.Error("public response should not echo the token")
	}

	rr = doJSON(t, router, "GET", "/public/proposals/"+uuid.NewString(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown token: got %d, want 404", rr.Code)
	}
}

func TestPublicProposal_Respond(t *testing.T) {
	tests := []struct {
		name   string
		action string
		err    error
		want   int
	}{
		{"accept", "accept", nil, http.StatusOK},
		{"already answered", "decline", service.ErrInvalidTransition, http.StatusConflict},
		{"bad action", "maybe", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProposalService{
				respondFn: func(_ context.Context, _ uuid.UUID, action, feedback string) (database.Invoice, error) {
					if tt.err != nil {
						return database.Invoice{}, tt.err
					}
					return database.Invoice{Status: "accepted"}, nil
				},
			}
			rr := postJSON(t, setupProposalRouter(svc, nil, nil), "/public/proposals/"+uuid.NewString()+"/respond",
				map[string]string{"action": tt.action, "feedback": "looks good"})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestPublicProposal_StartPayment(t *testing.T) {
	svc := &mockProposalService{
		startPaymentFn: func(context.Context, uuid.UUID) (payments.PaymentIntent, error) {
			return payments.PaymentIntent{ID: "pi_1", ClientSecret: "secret", Amount: 45000, Currency: "usd"}, nil
		},
	}
	rr := postJSON(t, setupProposalRouter(svc, nil, nil), "/public/proposals/"+uuid.NewString()+"/payment-intent", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["clientSecret"] != "secret" || resp["amount"] != float64(45000) {
		t.Errorf("response: got %v", resp)
	}

	svc.startPaymentFn = func(context.Context, uuid.UUID) (payments.PaymentIntent, error) {
		return payments.PaymentIntent{}, service.ErrPaymentsDisabled
	}
	rr = postJSON(t, setupProposalRouter(svc, nil, nil), "/public/proposals/"+uuid.NewString()+"/payment-intent", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled payments: got %d, want 503", rr.Code)
	}
}
