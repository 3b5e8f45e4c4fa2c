package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/document"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/events"
	"github.com/eventmarket/api/internal/payments"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxProposalTxAttempts = 3

// Errors returned by the proposal service.
var (
	ErrClientNameRequired  = errors.New("client_name is required")
	ErrInvalidClientEmail  = errors.New("a valid client_email is required")
	ErrEventNameRequired   = errors.New("event_name is required")
	ErrNegativeTotal       = errors.New("total must not be negative")
	ErrInvalidAction       = errors.New("action must be accept, decline or request_revision")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderLocked         = errors.New("order can no longer be re-priced")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrProposalNotEditable = errors.New("proposal can no longer be edited")
	ErrInvalidTransition   = errors.New("proposal status does not allow this action")
	ErrPaymentsDisabled    = errors.New("online payment is not available")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProposalStore defines the DB methods the proposal service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type ProposalStore interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderPricing(ctx context.Context, arg database.UpdateOrderPricingParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpsertOrderV2(ctx context.Context, arg database.UpsertOrderV2Params) error
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	GetInvoiceByToken(ctx context.Context, token uuid.UUID) (database.Invoice, error)
	GetInvoiceByPaymentIntent(ctx context.Context, paymentIntentID string) (database.Invoice, error)
	UpdateInvoiceDetails(ctx context.Context, arg database.UpdateInvoiceDetailsParams) (database.Invoice, error)
	TransitionInvoice(ctx context.Context, arg database.TransitionInvoiceParams) (database.Invoice, error)
	SetInvoicePdfUrl(ctx context.Context, arg database.SetInvoicePdfUrlParams) (database.Invoice, error)
	SetInvoicePaymentIntent(ctx context.Context, arg database.SetInvoicePaymentIntentParams) (database.Invoice, error)
}

// NewProposalStore creates a ProposalStore from a DBTX (pool or tx).
type NewProposalStore func(db database.DBTX) ProposalStore

type Publisher interface {
	Publish(topic string, ev events.ProposalEvent)
}

type DocumentGenerator interface {
	Generate(ctx context.Context, data document.ProposalData) (string, error)
}

type PaymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req payments.PaymentIntentRequest) (payments.PaymentIntent, error)
}

// ProposalDetails is the client and event information shared by create and
// update.
type ProposalDetails struct {
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	ClientCompany string
	EventName     string
	EventDate     *time.Time
	EventLocation string
	GuestCount    int32
	Notes         string
}

type CreateProposalRequest struct {
	// OrderID re-quotes an existing order instead of creating one.
	OrderID   *uuid.UUID
	HostID    *uuid.UUID
	CreatedBy uuid.UUID
	ProposalDetails
	Quote QuoteRequest
}

type UpdateProposalRequest struct {
	ProposalDetails
	Quote QuoteRequest
}

type ProposalResult struct {
	Invoice  database.Invoice
	Order    database.Order
	Snapshot pricing.Snapshot
}

// ProposalView is a proposal with its reconciled pricing.
type ProposalView struct {
	Invoice database.Invoice
	Order   database.Order
	Totals  pricing.Totals
	Source  pricing.Source
}

type ProposalService struct {
	pool       TxBeginner
	store      ProposalStore
	newStore   NewProposalStore
	quoter     *Quoter
	reconciler *pricing.Reconciler
	numbers    NumberGenerator
	bus        Publisher
	docs       DocumentGenerator
	payments   PaymentIntentCreator
	baseURL    string
	logger     *zap.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

type ProposalServiceConfig struct {
	Pool       TxBeginner
	Store      ProposalStore
	NewStore   NewProposalStore
	Quoter     *Quoter
	Reconciler *pricing.Reconciler
	Numbers    NumberGenerator
	Bus        Publisher
	Documents  DocumentGenerator
	Payments   PaymentIntentCreator
	BaseURL    string
	Logger     *zap.Logger
}

func NewProposalService(cfg ProposalServiceConfig) *ProposalService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalService{
		pool:       cfg.Pool,
		store:      cfg.Store,
		newStore:   cfg.NewStore,
		quoter:     cfg.Quoter,
		reconciler: cfg.Reconciler,
		numbers:    cfg.Numbers,
		bus:        cfg.Bus,
		docs:       cfg.Documents,
		payments:   cfg.Payments,
		baseURL:    cfg.BaseURL,
		logger:     logger,
		now:        time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// priced is a validated quote ready to be written.
type priced struct {
	snapshot    pricing.Snapshot
	snapshotRaw []byte
	services    []byte
	items       []byte
	adjustments []byte
	totals      pricing.Totals
}

func (s *ProposalService) price(ctx context.Context, d ProposalDetails, q QuoteRequest) (*priced, error) {
	if err := validateDetails(d); err != nil {
		return nil, err
	}

	quote, err := s.quoter.Quote(ctx, q)
	if err != nil {
		return nil, err
	}
	if quote.Totals.Total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	p := &priced{totals: quote.Totals, snapshot: pricing.NewSnapshot(quote.Totals, s.now())}
	if p.snapshotRaw, err = json.Marshal(p.snapshot); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if p.services, err = json.Marshal(q.Services); err != nil {
		return nil, fmt.Errorf("marshal services: %w", err)
	}
	items := q.SelectedItems
	if items == nil {
		items = pricing.SelectedItems{}
	}
	if p.items, err = json.Marshal(items); err != nil {
		return nil, fmt.Errorf("marshal selected items: %w", err)
	}
	adjustments := q.Adjustments
	if adjustments == nil {
		adjustments = []pricing.Adjustment{}
	}
	if p.adjustments, err = json.Marshal(adjustments); err != nil {
		return nil, fmt.Errorf("marshal adjustments: %w", err)
	}
	return p, nil
}

func validateDetails(d ProposalDetails) error {
	if strings.TrimSpace(d.ClientName) == "" {
		return ErrClientNameRequired
	}
	email := strings.TrimSpace(d.ClientEmail)
	if at := strings.LastIndex(email, "@"); at < 1 || at == len(email)-1 {
		return ErrInvalidClientEmail
	}
	if strings.TrimSpace(d.EventName) == "" {
		return ErrEventNameRequired
	}
	return nil
}

// CreateProposal prices the selection and writes the order and its invoice
// in one transaction, so a failed invoice insert leaves no orphan order.
// Transient conflicts are retried up to maxProposalTxAttempts times.
func (s *ProposalService) CreateProposal(ctx context.Context, req CreateProposalRequest) (*ProposalResult, error) {
	p, err := s.price(ctx, req.ProposalDetails, req.Quote)
	if err != nil {
		return nil, err
	}

	var result *ProposalResult
	err = s.retry(ctx, func() error {
		var txErr error
		result, txErr = s.createProposalTx(ctx, req, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.mirrorOrder(ctx, result.Order)
	return result, nil
}

func (s *ProposalService) createProposalTx(ctx context.Context, req CreateProposalRequest, p *priced) (*ProposalResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	d := req.ProposalDetails

	var order database.Order
	if req.OrderID != nil {
		if _, err := store.GetOrderForUpdate(ctx, *req.OrderID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("lock order: %w", err)
		}
		order, err = store.UpdateOrderPricing(ctx, orderPricingParams(*req.OrderID, d, p))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderLocked
			}
			return nil, fmt.Errorf("update order: %w", err)
		}
	} else {
		order, err = store.CreateOrder(ctx, database.CreateOrderParams{
			OrderNumber:        s.numbers("ORD"),
			HostID:             optUUID(req.HostID),
			EventName:          d.EventName,
			EventDate:          optTime(d.EventDate),
			EventLocation:      d.EventLocation,
			GuestCount:         d.GuestCount,
			SelectedServices:   p.services,
			SelectedItems:      p.items,
			CustomAdjustments:  p.adjustments,
			IsTaxExempt:        p.totals.IsTaxExempt,
			IsServiceFeeWaived: p.totals.IsServiceFeeWaived,
			Subtotal:           decimalToNumeric(p.totals.Subtotal),
			ServiceFee:         decimalToNumeric(p.totals.ServiceFee),
			DeliveryFee:        decimalToNumeric(p.totals.DeliveryFee),
			AdjustmentsTotal:   decimalToNumeric(p.totals.AdjustmentsTotal),
			Tax:                decimalToNumeric(p.totals.Tax),
			Total:              decimalToNumeric(p.totals.Total),
			CreatedBy:          req.CreatedBy,
		})
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
	}

	invoice, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		InvoiceNumber:   s.numbers("INV"),
		OrderID:         order.ID,
		ClientName:      strings.TrimSpace(d.ClientName),
		ClientEmail:     strings.TrimSpace(d.ClientEmail),
		ClientPhone:     optText(d.ClientPhone),
		ClientCompany:   optText(d.ClientCompany),
		PricingSnapshot: p.snapshotRaw,
		Notes:           optText(d.Notes),
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ProposalResult{Invoice: invoice, Order: order, Snapshot: p.snapshot}, nil
}

func orderPricingParams(orderID uuid.UUID, d ProposalDetails, p *priced) database.UpdateOrderPricingParams {
	return database.UpdateOrderPricingParams{
		ID:                 orderID,
		EventName:          d.EventName,
		EventDate:          optTime(d.EventDate),
		EventLocation:      d.EventLocation,
		GuestCount:         d.GuestCount,
		SelectedServices:   p.services,
		SelectedItems:      p.items,
		CustomAdjustments:  p.adjustments,
		IsTaxExempt:        p.totals.IsTaxExempt,
		IsServiceFeeWaived: p.totals.IsServiceFeeWaived,
		Subtotal:           decimalToNumeric(p.totals.Subtotal),
		ServiceFee:         decimalToNumeric(p.totals.ServiceFee),
		DeliveryFee:        decimalToNumeric(p.totals.DeliveryFee),
		AdjustmentsTotal:   decimalToNumeric(p.totals.AdjustmentsTotal),
		Tax:                decimalToNumeric(p.totals.Tax),
		Total:              decimalToNumeric(p.totals.Total),
	}
}

var editableStatuses = map[string]bool{
	enum.InvoiceStatusDraft:             true,
	enum.InvoiceStatusSent:              true,
	enum.InvoiceStatusRevisionRequested: true,
}

// UpdateProposal re-prices an editable proposal through the same path as
// creation and overwrites its snapshot.
func (s *ProposalService) UpdateProposal(ctx context.Context, invoiceID uuid.UUID, req UpdateProposalRequest) (*ProposalResult, error) {
	p, err := s.price(ctx, req.ProposalDetails, req.Quote)
	if err != nil {
		return nil, err
	}

	var result *ProposalResult
	err = s.retry(ctx, func() error {
		var txErr error
		result, txErr = s.updateProposalTx(ctx, invoiceID, req, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.mirrorOrder(ctx, result.Order)
	return result, nil
}

func (s *ProposalService) updateProposalTx(ctx context.Context, invoiceID uuid.UUID, req UpdateProposalRequest, p *priced) (*ProposalResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("lock invoice: %w", err)
	}
	if !editableStatuses[current.Status] {
		return nil, ErrProposalNotEditable
	}

	order, err := store.UpdateOrderPricing(ctx, orderPricingParams(current.OrderID, req.ProposalDetails, p))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderLocked
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	d := req.ProposalDetails
	invoice, err := store.UpdateInvoiceDetails(ctx, database.UpdateInvoiceDetailsParams{
		ID:              invoiceID,
		ClientName:      strings.TrimSpace(d.ClientName),
		ClientEmail:     strings.TrimSpace(d.ClientEmail),
		ClientPhone:     optText(d.ClientPhone),
		ClientCompany:   optText(d.ClientCompany),
		Notes:           optText(d.Notes),
		PricingSnapshot: p.snapshotRaw,
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ProposalResult{Invoice: invoice, Order: order, Snapshot: p.snapshot}, nil
}

// retry runs fn with exponential backoff while it fails with a transient
// database error.
func (s *ProposalService) retry(ctx context.Context, fn func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxProposalTxAttempts-1), ctx)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		s.logger.Warn("proposal write conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, b)
}

// isRetryable reports serialization failures, deadlocks and document number
// collisions.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == "invoices_invoice_number_key" || pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// mirrorOrder refreshes the orders_v2 reporting row. Failures are logged and
// never surface to the caller.
func (s *ProposalService) mirrorOrder(ctx context.Context, order database.Order) {
	services, err := pricing.DecodeServices(order.SelectedServices)
	if err != nil {
		s.logger.Warn("orders_v2 mirror: decode services", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	seen := map[uuid.UUID]bool{}
	vendorIDs := []uuid.UUID{}
	for _, svc := range services {
		if id, err := uuid.Parse(svc.VendorID); err == nil && !seen[id] {
			seen[id] = true
			vendorIDs = append(vendorIDs, id)
		}
	}

	err = s.store.UpsertOrderV2(ctx, database.UpsertOrderV2Params{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		VendorIds:   vendorIDs,
		Subtotal:    order.Subtotal,
		Total:       order.Total,
	})
	if err != nil {
		s.logger.Error("orders_v2 mirror failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

// GetProposal returns a proposal by id with its frozen pricing.
func (s *ProposalService) GetProposal(ctx context.Context, id uuid.UUID) (*ProposalView, error) {
	inv, err := s.store.GetInvoiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return s.view(ctx, inv)
}

// GetByToken returns the proposal addressed by its client token.
func (s *ProposalService) GetByToken(ctx context.Context, token uuid.UUID) (*ProposalView, error) {
	inv, err := s.store.GetInvoiceByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("get invoice by token: %w", err)
	}
	return s.view(ctx, inv)
}

func (s *ProposalService) view(ctx context.Context, inv database.Invoice) (*ProposalView, error) {
	order, err := s.store.GetOrderByID(ctx, inv.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	snapshot, err := pricing.ParseSnapshot(inv.PricingSnapshot)
	if err != nil {
		s.logger.Warn("unreadable pricing snapshot, using live pricing", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}

	var in pricing.Input
	if snapshot == nil {
		if in, err = OrderInput(order, s.quoter.fees); err != nil {
			return nil, err
		}
	}
	totals, source, err := s.reconciler.Resolve(snapshot, in)
	if err != nil {
		return nil, err
	}
	return &ProposalView{Invoice: inv, Order: order, Totals: totals, Source: source}, nil
}

// OrderInput rebuilds the calculator input from a stored order. The order
// keeps no event coordinates, so the delivery fee it was saved with is
// carried over instead of being recomputed without distances.
func OrderInput(order database.Order, fees pricing.Fees) (pricing.Input, error) {
	services, err := pricing.DecodeServices(order.SelectedServices)
	if err != nil {
		return pricing.Input{}, fmt.Errorf("order %s: %w", order.ID, err)
	}
	var items pricing.SelectedItems
	if len(order.SelectedItems) > 0 {
		if err := json.Unmarshal(order.SelectedItems, &items); err != nil {
			return pricing.Input{}, fmt.Errorf("decode selected items: %w", err)
		}
	}
	var adjustments []pricing.Adjustment
	if len(order.CustomAdjustments) > 0 {
		if err := json.Unmarshal(order.CustomAdjustments, &adjustments); err != nil {
			return pricing.Input{}, fmt.Errorf("decode adjustments: %w", err)
		}
	}
	return pricing.Input{
		Services:           services,
		SelectedItems:      items,
		EventLocation:      order.EventLocation,
		Fees:               fees,
		Adjustments:        adjustments,
		StoredDeliveryFee:  decimal.NullDecimal{Decimal: numericToDecimal(order.DeliveryFee), Valid: order.DeliveryFee.Valid},
		IsTaxExempt:        order.IsTaxExempt,
		IsServiceFeeWaived: order.IsServiceFeeWaived,
	}, nil
}

// SendProposal moves a draft (or a proposal sent back for revision) to
// sent, renders its PDF and notifies the client.
func (s *ProposalService) SendProposal(ctx context.Context, invoiceID uuid.UUID) (database.Invoice, error) {
	inv, err := s.transition(ctx, s.store, invoiceID, []string{enum.InvoiceStatusDraft, enum.InvoiceStatusRevisionRequested}, enum.InvoiceStatusSent, "")
	if err != nil {
		return database.Invoice{}, err
	}

	if url, err := s.RenderDocument(ctx, inv); err != nil {
		s.logger.Error("proposal pdf generation failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	} else if url != "" {
		inv.PdfUrl = optText(url)
	}

	s.publish(events.TopicProposalSent, inv)
	return inv, nil
}

// RenderDocument prints the proposal PDF and records its URL. It returns ""
// when no document generator is configured.
func (s *ProposalService) RenderDocument(ctx context.Context, inv database.Invoice) (string, error) {
	if s.docs == nil {
		return "", nil
	}

	view, err := s.view(ctx, inv)
	if err != nil {
		return "", err
	}

	data := document.ProposalData{
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		ClientCompany: inv.ClientCompany.String,
		EventName:     view.Order.EventName,
		EventLocation: view.Order.EventLocation,
		GuestCount:    view.Order.GuestCount,
		Notes:         inv.Notes.String,
		Totals:        view.Totals,
		IssuedAt:      s.now(),
		ProposalURL:   s.proposalURL(inv.Token),
	}
	if view.Order.EventDate.Valid {
		data.EventDate = view.Order.EventDate.Time
	}

	url, err := s.docs.Generate(ctx, data)
	if err != nil {
		return "", err
	}
	if _, err := s.store.SetInvoicePdfUrl(ctx, database.SetInvoicePdfUrlParams{ID: inv.ID, PdfUrl: optText(url)}); err != nil {
		return "", fmt.Errorf("save pdf url: %w", err)
	}
	return url, nil
}

var actionStatus = map[string]string{
	enum.ProposalActionAccept:          enum.InvoiceStatusAccepted,
	enum.ProposalActionDecline:         enum.InvoiceStatusDeclined,
	enum.ProposalActionRequestRevision: enum.InvoiceStatusRevisionRequested,
}

// Respond records the client's decision on a sent proposal.
func (s *ProposalService) Respond(ctx context.Context, token uuid.UUID, action, feedback string) (database.Invoice, error) {
	status, ok := actionStatus[action]
	if !ok {
		return database.Invoice{}, ErrInvalidAction
	}

	inv, err := s.store.GetInvoiceByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, ErrProposalNotFound
		}
		return database.Invoice{}, fmt.Errorf("get invoice by token: %w", err)
	}

	inv, err = s.transition(ctx, s.store, inv.ID, []string{enum.InvoiceStatusSent}, status, strings.TrimSpace(feedback))
	if err != nil {
		return database.Invoice{}, err
	}

	s.publish(events.TopicProposalResponded, inv)
	return inv, nil
}

// StartPayment creates a payment intent for an accepted proposal.
func (s *ProposalService) StartPayment(ctx context.Context, token uuid.UUID) (payments.PaymentIntent, error) {
	if s.payments == nil {
		return payments.PaymentIntent{}, ErrPaymentsDisabled
	}

	view, err := s.GetByToken(ctx, token)
	if err != nil {
		return payments.PaymentIntent{}, err
	}
	if view.Invoice.Status != enum.InvoiceStatusAccepted {
		return payments.PaymentIntent{}, ErrInvalidTransition
	}

	pi, err := s.payments.CreatePaymentIntent(ctx, payments.PaymentIntentRequest{
		InvoiceID:     view.Invoice.ID.String(),
		InvoiceNumber: view.Invoice.InvoiceNumber,
		Amount:        view.Totals.Total,
		ReceiptEmail:  view.Invoice.ClientEmail,
	})
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return payments.PaymentIntent{}, ErrPaymentsDisabled
		}
		return payments.PaymentIntent{}, err
	}

	if _, err := s.store.SetInvoicePaymentIntent(ctx, database.SetInvoicePaymentIntentParams{
		ID:              view.Invoice.ID,
		PaymentIntentID: optText(pi.ID),
	}); err != nil {
		return payments.PaymentIntent{}, fmt.Errorf("save payment intent: %w", err)
	}
	return pi, nil
}

// MarkPaid settles the invoice behind a succeeded payment intent and
// confirms its order. Repeated deliveries of the same webhook are no-ops.
func (s *ProposalService) MarkPaid(ctx context.Context, paymentIntentID string) (database.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	inv, err := store.GetInvoiceByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, ErrProposalNotFound
		}
		return database.Invoice{}, fmt.Errorf("get invoice by payment intent: %w", err)
	}
	if inv.Status == enum.InvoiceStatusPaid {
		return inv, nil
	}

	inv, err = s.transition(ctx, store, inv.ID, []string{enum.InvoiceStatusAccepted}, enum.InvoiceStatusPaid, "")
	if err != nil {
		return database.Invoice{}, err
	}

	order, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:       inv.OrderID,
		Status:   enum.OrderStatusConfirmed,
		Status_2: enum.OrderStatusPending,
	})
	orderConfirmed := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, fmt.Errorf("confirm order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Invoice{}, fmt.Errorf("commit tx: %w", err)
	}

	if orderConfirmed {
		s.mirrorOrder(ctx, order)
	}
	s.publish(events.TopicInvoicePaid, inv)
	return inv, nil
}

// transition applies a guarded status change, telling a missing proposal
// apart from one in the wrong state.
func (s *ProposalService) transition(ctx context.Context, store ProposalStore, id uuid.UUID, from []string, to, feedback string) (database.Invoice, error) {
	inv, err := store.TransitionInvoice(ctx, database.TransitionInvoiceParams{
		ID:             id,
		FromStatuses:   from,
		Status:         to,
		ClientFeedback: optText(feedback),
	})
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, fmt.Errorf("transition invoice: %w", err)
	}
	if _, err := store.GetInvoiceByID(ctx, id); errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, ErrProposalNotFound
	}
	return database.Invoice{}, ErrInvalidTransition
}

func (s *ProposalService) publish(topic string, inv database.Invoice) {
	if s.bus == nil {
		return
	}
	total := decimal.Zero
	if snap, err := pricing.ParseSnapshot(inv.PricingSnapshot); err == nil && snap != nil {
		total = snap.Total
	}
	s.bus.Publish(topic, events.ProposalEvent{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		OrderID:       inv.OrderID,
		Status:        inv.Status,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		Token:         inv.Token,
		Total:         total,
		Feedback:      inv.ClientFeedback.String,
		CreatedBy:     inv.CreatedBy,
	})
}

func (s *ProposalService) proposalURL(token uuid.UUID) string {
	return fmt.Sprintf("%s/proposals/%s", s.baseURL, token)
}
