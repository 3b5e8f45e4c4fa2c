package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	InvoiceStatusDraft             = "draft"
	InvoiceStatusSent              = "sent"
	InvoiceStatusAccepted          = "accepted"
	InvoiceStatusDeclined          = "declined"
	InvoiceStatusRevisionRequested = "revision_requested"
	InvoiceStatusPaid              = "paid"
)

const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusProposal  = "proposal"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// LeadBoardColumns is the fixed column order of the lead board.
var LeadBoardColumns = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQualified,
	LeadStatusProposal,
	LeadStatusWon,
	LeadStatusLost,
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin  = "admin"
	UserRoleVendor = "vendor"
	UserRoleHost   = "host"
)

const (
	ServiceTypeCatering     = "catering"
	ServiceTypeVenue        = "venue"
	ServiceTypeStaff        = "staff"
	ServiceTypePartyRentals = "party-rentals"
)

const (
	PriceTypeFlat      = "flat"
	PriceTypeHourly    = "hourly"
	PriceTypePerPerson = "per_person"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	ServiceFeeTypePercentage = "percentage"
	ServiceFeeTypeFixed      = "fixed"
)

const (
	AdjustmentTypePercentage = "percentage"
	AdjustmentTypeFixed      = "fixed"
)

const (
	AdjustmentModeSurcharge = "surcharge"
	AdjustmentModeDiscount  = "discount"
)

const (
	ProposalActionAccept          = "accept"
	ProposalActionDecline         = "decline"
	ProposalActionRequestRevision = "request_revision"
)
