package model

import "time"

// Event types emitted to the indexing topic, one per mutating ledger call.
const (
	EventBookingCreated       = "booking.created"
	EventBookingCompleted     = "booking.completed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingDefaulted     = "booking.defaulted"
	EventDepositSplitProposed = "deposit.split_proposed"
	EventDepositReleased      = "deposit.released"
	EventTokenisationProposed = "tokenisation.proposed"
	EventTokenisationApproved = "tokenisation.approved"
	EventSharesIssued         = "tokenisation.shares_issued"
	EventRentPaid             = "rent.paid"
	EventRentClaimed          = "rent.claimed"
	EventListingCreated       = "listing.created"
	EventListingUpdated       = "listing.updated"
	EventListingDeactivated   = "listing.deactivated"
)

// LedgerEvent is the structured record external indexers consume. Amounts
// carry six-decimal strings keyed by what moved ("deposit", "tenant_payout",
// "net_rent", …) so the schema stays stable as transitions gain detail.
type LedgerEvent struct {
	Type       string            `json:"type"`
	BookingID  string            `json:"booking_id,omitempty"`
	ListingID  string            `json:"listing_id"`
	Actor      string            `json:"actor,omitempty"`
	Status     string            `json:"status,omitempty"`
	Amounts    map[string]string `json:"amounts,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
