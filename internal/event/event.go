// Package event defines the payloads carried by the outbox and the kafka
// topics. Amounts travel as strings to avoid float drift in transit.
package event

import "time"

// Notification event types, matched by downstream dispatchers.
const (
	AuctionStarted    = "auction.started"
	AuctionExtended   = "auction.extended"
	AuctionWon        = "auction.won"
	AuctionNoBids     = "auction.no_bids"
	ReserveNotMet     = "reserve_not_met"
	OrderCreated      = "order.created"
	OrderDepositPaid  = "order.deposit_paid"
	WeightDiscrepancy = "weight_discrepancy"
	OrderCompleted    = "order.completed"
)

// TypeBidAccepted is published on the bids topic for every accepted bid;
// the shill detector is its primary consumer.
const TypeBidAccepted = "bid.accepted"

// BidAccepted describes one accepted bid.
type BidAccepted struct {
	BidID        int64     `json:"bid_id"`
	AuctionID    int64     `json:"auction_id"`
	SellerID     int64     `json:"seller_id"`
	BidderID     int64     `json:"bidder_id"`
	Amount       string    `json:"amount"`
	OriginIP     string    `json:"origin_ip,omitempty"`
	OriginDevice string    `json:"origin_device,omitempty"`
	Extended     bool      `json:"extended"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

// Notification is the envelope drained to the notifications topic for
// fire-and-forget delivery to buyers, sellers, or operations.
type Notification struct {
	Audience  string         `json:"audience"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Audiences for notifications.
const (
	AudienceBidders = "bidders"
	AudienceSeller  = "seller"
	AudienceBuyer   = "buyer"
	AudienceOps     = "operations"
)
