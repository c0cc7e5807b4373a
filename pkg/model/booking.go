package model

import "time"

// BookingStatus is the lifecycle state of a reservation. There is no stored
// "none" state: a booking document only exists once it is active, and the
// three terminal states are absorbing.
type BookingStatus string

const (
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusDefaulted BookingStatus = "defaulted"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDefaulted
}

// AccrualPeriod is the advertised rent cadence of a tokenised raise.
type AccrualPeriod string

const (
	PeriodNone    AccrualPeriod = "none"
	PeriodDaily   AccrualPeriod = "daily"
	PeriodWeekly  AccrualPeriod = "weekly"
	PeriodMonthly AccrualPeriod = "monthly"
)

// PendingDepositSplit is the at-most-one open escrow release proposal on a
// booking. Confirm, cancel and default all clear it; a new proposal
// overwrites it and bumps the nonce.
type PendingDepositSplit struct {
	ProposerID string `json:"proposer_id" bson:"proposer_id"`
	TenantBps  int64  `json:"tenant_bps" bson:"tenant_bps"`
	Nonce      int64  `json:"nonce" bson:"nonce"`
}

// Booking is the authoritative per-reservation ledger document. Investor
// share balances and debt checkpoints are embedded: the booking is the
// single linearization unit, and investor cardinality per booking is low.
//
// AccRentPerShare and Debt values are 1e18-scaled integers stored as decimal
// strings because they exceed int64 range (see pkg/fixedpoint).
type Booking struct {
	ID         string `json:"id,omitempty" bson:"_id,omitempty"`
	ListingID  string `json:"listing_id" bson:"listing_id" validate:"required"`
	Seq        int64  `json:"seq" bson:"seq"`
	TenantID   string `json:"tenant_id" bson:"tenant_id" validate:"required,min=1,max=64"`
	LandlordID string `json:"landlord_id" bson:"landlord_id" validate:"required,min=1,max=64"`

	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`

	RentMicros    int64         `json:"rent_micros" bson:"rent_micros"`
	DepositMicros int64         `json:"deposit_micros" bson:"deposit_micros"`
	Status        BookingStatus `json:"status" bson:"status" validate:"required,oneof=active completed cancelled defaulted"`

	RentPaidMicros   int64                `json:"rent_paid_micros" bson:"rent_paid_micros"`
	DepositReleased  bool                 `json:"deposit_released" bson:"deposit_released"`
	DepositTenantBps int64                `json:"deposit_tenant_bps" bson:"deposit_tenant_bps"`
	PendingSplit     *PendingDepositSplit `json:"pending_split,omitempty" bson:"pending_split,omitempty"`
	SplitNonce       int64                `json:"split_nonce" bson:"split_nonce"`

	TokenisationProposed bool          `json:"tokenisation_proposed" bson:"tokenisation_proposed"`
	Tokenised            bool          `json:"tokenised" bson:"tokenised"`
	TotalShares          int64         `json:"total_shares" bson:"total_shares"`
	SoldShares           int64         `json:"sold_shares" bson:"sold_shares"`
	PricePerShareMicros  int64         `json:"price_per_share_micros" bson:"price_per_share_micros"`
	FeeBps               int64         `json:"fee_bps" bson:"fee_bps"`
	Period               AccrualPeriod `json:"period" bson:"period"`

	AccRentPerShare string            `json:"acc_rent_per_share" bson:"acc_rent_per_share"`
	Shares          map[string]int64  `json:"shares,omitempty" bson:"shares,omitempty"`
	Debt            map[string]string `json:"debt,omitempty" bson:"debt,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// BookingRequest is the inbound payload for creating a reservation.
type BookingRequest struct {
	ListingID string    `json:"listing_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// TokenisationProposal is the inbound payload for proposeTokenisation.
type TokenisationProposal struct {
	TotalShares         int64         `json:"total_shares" validate:"required,gt=0,max=100000000"`
	PricePerShareMicros int64         `json:"price_per_share_micros" validate:"required,gt=0"`
	FeeBps              int64         `json:"fee_bps" validate:"bps"`
	Period              AccrualPeriod `json:"period" validate:"accrual_period"`
}

// InvestorPosition is the read model for one investor's stake in a booking.
type InvestorPosition struct {
	BookingID     string `json:"booking_id"`
	InvestorID    string `json:"investor_id"`
	Shares        int64  `json:"shares"`
	PendingMicros int64  `json:"pending_micros"`
}
