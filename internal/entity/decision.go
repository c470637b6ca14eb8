package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DecisionStatus tracks the seller's reserve-not-met choice.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionAccepted DecisionStatus = "accepted"
	DecisionDeclined DecisionStatus = "declined"
	DecisionExpired  DecisionStatus = "expired"
)

// SellerDecision is the bounded sub-state an auction enters when it closed
// below reserve: the seller may accept the top bid or decline within the
// window. Kept in a side table so the auction status graph stays small.
type SellerDecision struct {
	bun.BaseModel `bun:"table:seller_decisions"`

	ID           int64           `bun:",pk,autoincrement"`
	AuctionID    int64           `bun:"auction_id,notnull,unique"`
	WinningBidID int64           `bun:"winning_bid_id,notnull"`
	BidderID     int64           `bun:"bidder_id,notnull"`
	Amount       decimal.Decimal `bun:"amount,type:numeric(14,2),notnull"`
	Status       DecisionStatus  `bun:"status,notnull"`
	ExpiresAt    time.Time       `bun:"expires_at,notnull"`
	DecidedAt    *time.Time      `bun:"decided_at"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
