package router

import (
	"context"
	"net/http"

	"github.com/eventmarket/api/internal/config"
	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/handler"
	"github.com/eventmarket/api/internal/logging"
	mw "github.com/eventmarket/api/internal/middleware"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/service"
	"github.com/eventmarket/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps carries everything the handlers need. Built once in cmd/server.
type Deps struct {
	Queries    *database.Queries
	Hub        *ws.Hub
	Logger     *zap.Logger
	Quoter     *service.Quoter
	Proposals  *service.ProposalService
	Leads      *service.LeadService
	Earnings   *service.EarningsService
	Payments   *payments.Client
	Reconciler *pricing.Reconciler
	Fees       pricing.Fees
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, vendor scoping, and role-based middleware as needed.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// Locally stored proposal PDFs
	if cfg.Storage.Driver == "local" && cfg.Storage.LocalURL != "" {
		prefix := cfg.Storage.LocalURL
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Storage.LocalDir))))
	}

	handler.NewAuthHandler(d.Queries, cfg.JWTSecret).RegisterRoutes(r)
	handler.NewWebhookHandler(d.Payments, d.Proposals).RegisterRoutes(r)
	handler.NewQuoteHandler(d.Quoter).RegisterRoutes(r)

	catalogHandler := handler.NewCatalogHandler(d.Queries)
	catalogHandler.RegisterRoutes(r)

	proposalHandler := handler.NewProposalHandler(d.Proposals, d.Queries)
	r.Route("/public/proposals", proposalHandler.RegisterPublicRoutes)

	// WebSocket routes (handle auth internally via query param)
	ws.NewHandler(d.Hub, cfg.JWTSecret, orderOwner(d.Queries)).RegisterRoutes(r)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewNotificationHandler(d.Queries).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleHost))
			orderHandler := handler.NewOrderHandler(d.Queries, d.Reconciler, d.Fees)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			r.Route("/users", handler.NewUserHandler(d.Queries).RegisterRoutes)
			r.Route("/proposals", proposalHandler.RegisterRoutes)
			r.Route("/leads", handler.NewLeadHandler(d.Queries, d.Leads).RegisterRoutes)
		})

		// Vendor-scoped routes
		vendorHandler := handler.NewVendorHandler(d.Queries, d.Payments, d.Earnings, cfg.PublicBaseURL)
		r.Route("/vendors/{vid}", func(r chi.Router) {
			r.Use(mw.RequireVendor)
			vendorHandler.RegisterRoutes(r)
			catalogHandler.RegisterVendorRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				vendorHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r
}

// orderOwner resolves the host of an order for websocket subscriptions.
func orderOwner(q *database.Queries) ws.OrderOwnerFunc {
	return func(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error) {
		order, err := q.GetOrderByID(ctx, orderID)
		if err != nil {
			return uuid.Nil, err
		}
		if !order.HostID.Valid {
			return uuid.Nil, nil
		}
		return uuid.UUID(order.HostID.Bytes), nil
	}
}
