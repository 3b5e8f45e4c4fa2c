package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventmarket/api/internal/config"
	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/delivery"
	"github.com/eventmarket/api/internal/document"
	"github.com/eventmarket/api/internal/events"
	"github.com/eventmarket/api/internal/jobs"
	"github.com/eventmarket/api/internal/logging"
	"github.com/eventmarket/api/internal/notify"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/router"
	"github.com/eventmarket/api/internal/service"
	"github.com/eventmarket/api/internal/storage"
	"github.com/eventmarket/api/internal/tax"
	"github.com/eventmarket/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		exitWithError(logger, err)
	}
}

var exit = os.Exit

// exitWithError flushes the logger before exiting; deferred calls do not run
// after os.Exit.
func exitWithError(logger *zap.Logger, err error) {
	logger.Error("server stopped", zap.Error(err))
	_ = logger.Sync()
	exit(1)
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	queries := database.New(pool)

	// Pricing
	taxTable := tax.NewTable(cfg.Pricing.DefaultTaxRate)
	if cfg.Pricing.TaxTableFile != "" {
		if taxTable, err = tax.Load(cfg.Pricing.TaxTableFile, cfg.Pricing.DefaultTaxRate); err != nil {
			return fmt.Errorf("load tax table: %w", err)
		}
	}
	tiers, err := delivery.ParseTiers(cfg.Pricing.DeliveryTiers)
	if err != nil {
		return err
	}
	policy := delivery.NewPolicy(cfg.Pricing.DeliveryFreeMiles, cfg.Pricing.DeliveryPerMile, tiers)
	calc := pricing.NewCalculator(taxTable, policy, pricing.Options{StaffMinimumHours: cfg.Pricing.StaffMinimumHours})
	fees := pricing.Fees{
		ServiceFeeType:       cfg.Pricing.ServiceFeeType,
		ServiceFeePercentage: cfg.Pricing.ServiceFeePercentage,
		ServiceFeeFixed:      cfg.Pricing.ServiceFeeFixed,
	}
	reconciler := pricing.NewReconciler(calc)
	quoter := service.NewQuoter(calc, fees, queries)

	numbers, err := service.NewNumberGenerator(cfg.SnowflakeNode)
	if err != nil {
		return err
	}

	// Documents
	docStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	logger.Info("document storage ready", zap.String("driver", cfg.Storage.Driver))
	generator := document.NewGenerator(document.NewChromePrinter(cfg.ChromePath), docStore)

	// Realtime and notifications
	hub := ws.NewHub()
	go hub.Run(ctx)

	bus := events.NewBus()
	notifier := notify.NewNotifier(queries, notify.NewMailer(cfg.SMTP), cfg.PublicBaseURL, logger.Named("notify"))
	if err := bus.SubscribeAll(notifier.Handle); err != nil {
		return fmt.Errorf("subscribe notifier: %w", err)
	}
	if err := bus.SubscribeAll(hub.HandleProposalEvent); err != nil {
		return fmt.Errorf("subscribe hub: %w", err)
	}

	stripeClient := payments.NewClient(cfg.Stripe)

	proposals := service.NewProposalService(service.ProposalServiceConfig{
		Pool:  pool,
		Store: queries,
		NewStore: func(db database.DBTX) service.ProposalStore {
			return database.New(db)
		},
		Quoter:     quoter,
		Reconciler: reconciler,
		Numbers:    numbers,
		Bus:        bus,
		Documents:  generator,
		Payments:   stripeClient,
		BaseURL:    cfg.PublicBaseURL,
		Logger:     logger.Named("proposals"),
	})

	scheduler := jobs.NewScheduler(queries, logger.Named("jobs"))
	if err := scheduler.Start(cfg.RankingCron); err != nil {
		return fmt.Errorf("schedule ranking job: %w", err)
	}

	r := router.New(cfg, router.Deps{
		Queries:    queries,
		Hub:        hub,
		Logger:     logger,
		Quoter:     quoter,
		Proposals:  proposals,
		Leads:      service.NewLeadService(queries),
		Earnings:   service.NewEarningsService(queries, calc, logger.Named("earnings")),
		Payments:   stripeClient,
		Reconciler: reconciler,
		Fees:       fees,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	bus.Wait()
	return nil
}
