package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ShillPattern names a recognized collusion pattern.
type ShillPattern string

const (
	PatternCrossOwnership ShillPattern = "cross_ownership"
	PatternPingPong       ShillPattern = "ping_pong"
)

// AlertSeverity grades how strongly a pattern suggests collusion.
type AlertSeverity string

const (
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// ShillAlert is advisory output of the fraud detector. It references the
// suspected bidders and bids but never gates or mutates auction state;
// enforcement is an operator decision.
type ShillAlert struct {
	bun.BaseModel `bun:"table:shill_alerts"`

	ID        int64         `bun:",pk,autoincrement"`
	AuctionID int64         `bun:"auction_id,notnull"`
	Pattern   ShillPattern  `bun:"pattern,notnull"`
	Severity  AlertSeverity `bun:"severity,notnull"`
	BidderA   int64         `bun:"bidder_a,notnull"`
	BidderB   int64         `bun:"bidder_b"`
	Details   string        `bun:"details"`
	CreatedAt time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
