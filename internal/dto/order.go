package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID               int64      `json:"id"`
	Number           string     `json:"number"`
	Source           string     `json:"source"`
	AuctionID        *int64     `json:"auction_id,omitempty"`
	SellerID         int64      `json:"seller_id"`
	BuyerID          int64      `json:"buyer_id"`
	Quantity         int        `json:"quantity"`
	DeclaredWeightKg string     `json:"declared_weight_kg"`
	ActualWeightKg   string     `json:"actual_weight_kg,omitempty"`
	VariancePct      string     `json:"variance_pct,omitempty"`
	UnitPrice        string     `json:"unit_price"`
	Subtotal         string     `json:"subtotal"`
	PlatformFee      string     `json:"platform_fee"`
	ShippingFee      string     `json:"shipping_fee"`
	Total            string     `json:"total"`
	DepositAmount    string     `json:"deposit_amount"`
	FinalAmount      string     `json:"final_amount,omitempty"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	DisputeOpen      bool       `json:"dispute_open"`
	DisputeReason    string     `json:"dispute_reason,omitempty"`
	DepositDueAt     time.Time  `json:"deposit_due_at"`
	ConfirmDueAt     *time.Time `json:"confirm_due_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AlertResponse represents a fraud alert for operator review.
type AlertResponse struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	Pattern   string    `json:"pattern"`
	Severity  string    `json:"severity"`
	BidderA   int64     `json:"bidder_a"`
	BidderB   int64     `json:"bidder_b,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
