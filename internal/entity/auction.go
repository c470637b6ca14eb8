package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// AuctionStatus enumerates the auction lifecycle states. Transitions are
// monotonic: an auction never returns to an earlier state.
type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionActive    AuctionStatus = "active"
	AuctionExtended  AuctionStatus = "extended"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Auction represents one listing under competitive bidding.
type Auction struct {
	bun.BaseModel `bun:"table:auctions"`

	ID              int64               `bun:",pk,autoincrement"`
	SellerID        int64               `bun:"seller_id,notnull"`
	LotNumber       string              `bun:"lot_number,notnull"`
	LotWeightKg     decimal.Decimal     `bun:"lot_weight_kg,type:numeric(10,2),notnull"`
	StartingPrice   decimal.Decimal     `bun:"starting_price,type:numeric(14,2),notnull"`
	ReservePrice    decimal.NullDecimal `bun:"reserve_price,type:numeric(14,2)"`
	BidIncrement    decimal.Decimal     `bun:"bid_increment,type:numeric(14,2),notnull"`
	CurrentPrice    decimal.Decimal     `bun:"current_price,type:numeric(14,2),notnull"`
	CurrentBidderID *int64              `bun:"current_bidder_id"`
	BidCount        int                 `bun:"bid_count,notnull,default:0"`
	Status          AuctionStatus       `bun:"status,notnull"`
	AutoExtend      bool                `bun:"auto_extend,notnull,default:true"`
	StartAt         time.Time           `bun:"start_at,notnull"`
	EndAt           time.Time           `bun:"end_at,notnull"`
	ExtensionCount  int                 `bun:"extension_count,notnull,default:0"`
	MaxExtensions   int                 `bun:"max_extensions,notnull,default:3"`
	ReserveMet      bool                `bun:"reserve_met,notnull,default:false"`
	WinningBidID    *int64              `bun:"winning_bid_id"`
	FinalPrice      decimal.NullDecimal `bun:"final_price,type:numeric(14,2)"`
	CreatedAt       time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time           `bun:"updated_at,nullzero"`
}

// BiddingOpen reports whether the auction currently accepts bids.
func (a *Auction) BiddingOpen() bool {
	return a.Status == AuctionActive || a.Status == AuctionExtended
}

// ReserveSet reports whether the seller attached a hidden reserve price.
func (a *Auction) ReserveSet() bool {
	return a.ReservePrice.Valid
}

// MinimumNextBid is the lowest amount the next bid must reach: the current
// price plus the increment. Before any bid the current price equals the
// starting price.
func (a *Auction) MinimumNextBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.BidIncrement)
}

// CanExtend reports whether an accepted bid at now may push the deadline.
func (a *Auction) CanExtend(now time.Time, window time.Duration) bool {
	if !a.AutoExtend || a.ExtensionCount >= a.MaxExtensions {
		return false
	}
	return a.EndAt.Sub(now) <= window
}
