package dto

import "time"

// AuctionResponse represents an auction as exposed via transport layers.
// The reserve price is never included: it stays hidden until close.
type AuctionResponse struct {
	ID              int64     `json:"id"`
	SellerID        int64     `json:"seller_id"`
	LotNumber       string    `json:"lot_number"`
	LotWeightKg     string    `json:"lot_weight_kg"`
	StartingPrice   string    `json:"starting_price"`
	BidIncrement    string    `json:"bid_increment"`
	CurrentPrice    string    `json:"current_price"`
	MinimumNextBid  string    `json:"minimum_next_bid"`
	CurrentBidderID *int64    `json:"current_bidder_id,omitempty"`
	BidCount        int       `json:"bid_count"`
	Status          string    `json:"status"`
	AutoExtend      bool      `json:"auto_extend"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	ExtensionCount  int       `json:"extension_count"`
	MaxExtensions   int       `json:"max_extensions"`
	ReserveMet      bool      `json:"reserve_met"`
	FinalPrice      string    `json:"final_price,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BidResponse represents one accepted bid on the ledger.
type BidResponse struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	BidderID  int64     `json:"bidder_id"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
