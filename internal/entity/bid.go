package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Bid is an immutable fact: once accepted and persisted it is never updated
// or deleted. The ledger is retained for audit and fraud analysis.
type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	ID           int64           `bun:",pk,autoincrement"`
	AuctionID    int64           `bun:"auction_id,notnull"`
	BidderID     int64           `bun:"bidder_id,notnull"`
	Amount       decimal.Decimal `bun:"amount,type:numeric(14,2),notnull"`
	OriginIP     string          `bun:"origin_ip"`
	OriginDevice string          `bun:"origin_device"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// BidOrigin carries network metadata captured at submission time.
type BidOrigin struct {
	IP     string
	Device string
}
