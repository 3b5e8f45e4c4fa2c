package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NotificationPreference struct {
	UserID          uuid.UUID `json:"user_id"`
	ProposalUpdates bool      `json:"proposal_updates"`
	PaymentUpdates  bool      `json:"payment_updates"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Vendor struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	BusinessName    string         `json:"business_name"`
	Email           string         `json:"email"`
	Phone           pgtype.Text    `json:"phone"`
	Address         pgtype.Text    `json:"address"`
	Lat             pgtype.Float8  `json:"lat"`
	Lng             pgtype.Float8  `json:"lng"`
	StripeAccountID pgtype.Text    `json:"stripe_account_id"`
	CommissionRate  pgtype.Numeric `json:"commission_rate"`
	BoostPercentage pgtype.Numeric `json:"boost_percentage"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type Service struct {
	ID           uuid.UUID      `json:"id"`
	VendorID     uuid.UUID      `json:"vendor_id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Description  pgtype.Text    `json:"description"`
	Price        pgtype.Numeric `json:"price"`
	PriceType    string         `json:"price_type"`
	Details      []byte         `json:"details"`
	ImageUrl     pgtype.Text    `json:"image_url"`
	IsActive     bool           `json:"is_active"`
	RankingScore pgtype.Numeric `json:"ranking_score"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Order struct {
	ID                 uuid.UUID          `json:"id"`
	OrderNumber        string             `json:"order_number"`
	HostID             pgtype.UUID        `json:"host_id"`
	EventName          string             `json:"event_name"`
	EventDate          pgtype.Timestamptz `json:"event_date"`
	EventLocation      string             `json:"event_location"`
	GuestCount         int32              `json:"guest_count"`
	Status             string             `json:"status"`
	SelectedServices   []byte             `json:"selected_services"`
	SelectedItems      []byte             `json:"selected_items"`
	CustomAdjustments  []byte             `json:"custom_adjustments"`
	IsTaxExempt        bool               `json:"is_tax_exempt"`
	IsServiceFeeWaived bool               `json:"is_service_fee_waived"`
	Subtotal           pgtype.Numeric     `json:"subtotal"`
	ServiceFee         pgtype.Numeric     `json:"service_fee"`
	DeliveryFee        pgtype.Numeric     `json:"delivery_fee"`
	AdjustmentsTotal   pgtype.Numeric     `json:"adjustments_total"`
	Tax                pgtype.Numeric     `json:"tax"`
	Total              pgtype.Numeric     `json:"total"`
	CreatedBy          uuid.UUID          `json:"created_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type Invoice struct {
	ID              uuid.UUID          `json:"id"`
	InvoiceNumber   string             `json:"invoice_number"`
	OrderID         uuid.UUID          `json:"order_id"`
	ClientName      string             `json:"client_name"`
	ClientEmail     string             `json:"client_email"`
	ClientPhone     pgtype.Text        `json:"client_phone"`
	ClientCompany   pgtype.Text        `json:"client_company"`
	Status          string             `json:"status"`
	Token           uuid.UUID          `json:"token"`
	PricingSnapshot []byte             `json:"pricing_snapshot"`
	Notes           pgtype.Text        `json:"notes"`
	ClientFeedback  pgtype.Text        `json:"client_feedback"`
	PdfUrl          pgtype.Text        `json:"pdf_url"`
	PaymentIntentID pgtype.Text        `json:"payment_intent_id"`
	SentAt          pgtype.Timestamptz `json:"sent_at"`
	RespondedAt     pgtype.Timestamptz `json:"responded_at"`
	PaidAt          pgtype.Timestamptz `json:"paid_at"`
	CreatedBy       uuid.UUID          `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type Lead struct {
	ID          uuid.UUID   `json:"id"`
	CompanyName string      `json:"company_name"`
	ContactName string      `json:"contact_name"`
	Email       string      `json:"email"`
	Phone       pgtype.Text `json:"phone"`
	Source      pgtype.Text `json:"source"`
	Status      string      `json:"status"`
	Notes       pgtype.Text `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
