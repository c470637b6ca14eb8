package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus enumerates the order state machine. The graph only moves
// forward; cancelled is reachable from any state before in_transit, and
// disputed resolves back into completed or cancelled.
type OrderStatus string

const (
	OrderPendingDeposit OrderStatus = "pending_deposit"
	OrderDepositPaid    OrderStatus = "deposit_paid"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderInTransit      OrderStatus = "in_transit"
	OrderDelivered      OrderStatus = "delivered"
	OrderDisputed       OrderStatus = "disputed"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Cancellable reports whether an order in this state may still be cancelled.
// Once the goods are moving, cancellation goes through dispute resolution.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderPendingDeposit, OrderDepositPaid, OrderConfirmed, OrderProcessing, OrderReadyForPickup:
		return true
	}
	return false
}

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentUnpaid      PaymentStatus = "unpaid"
	PaymentDepositPaid PaymentStatus = "deposit_paid"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentPaidOut     PaymentStatus = "paid_out"
)

// OrderSource records how the order came to exist.
type OrderSource string

const (
	SourceAuctionWin OrderSource = "auction_win"
	SourceBuyNow     OrderSource = "buy_now"
)

// Order binds one seller and one buyer to a transaction sourced from an
// auction win or a direct purchase. Rows are never deleted; terminal
// states are final.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        int64       `bun:",pk,autoincrement"`
	Number    string      `bun:"number,notnull,unique"`
	Source    OrderSource `bun:"source,notnull"`
	AuctionID *int64      `bun:"auction_id"`
	SellerID  int64       `bun:"seller_id,notnull"`
	BuyerID   int64       `bun:"buyer_id,notnull"`

	Quantity         int                 `bun:"quantity,notnull,default:1"`
	DeclaredWeightKg decimal.Decimal     `bun:"declared_weight_kg,type:numeric(10,2),notnull"`
	ActualWeightKg   decimal.NullDecimal `bun:"actual_weight_kg,type:numeric(10,2)"`
	VariancePct      decimal.NullDecimal `bun:"variance_pct,type:numeric(6,2)"`

	UnitPrice     decimal.Decimal     `bun:"unit_price,type:numeric(14,2),notnull"`
	Subtotal      decimal.Decimal     `bun:"subtotal,type:numeric(14,2),notnull"`
	PlatformFee   decimal.Decimal     `bun:"platform_fee,type:numeric(14,2),notnull"`
	ShippingFee   decimal.Decimal     `bun:"shipping_fee,type:numeric(14,2),notnull"`
	Total         decimal.Decimal     `bun:"total,type:numeric(14,2),notnull"`
	DepositAmount decimal.Decimal     `bun:"deposit_amount,type:numeric(14,2),notnull"`
	FinalAmount   decimal.NullDecimal `bun:"final_amount,type:numeric(14,2)"`

	Status        OrderStatus   `bun:"status,notnull"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull"`

	DisputeOpen   bool     `bun:"dispute_open,notnull,default:false"`
	DisputeReason string   `bun:"dispute_reason"`
	PickupPhotos  []string `bun:"pickup_photos,type:jsonb"`

	DepositDueAt time.Time  `bun:"deposit_due_at,notnull"`
	ConfirmDueAt *time.Time `bun:"confirm_due_at"`
	EscalatedAt  *time.Time `bun:"escalated_at"`
	ConfirmedAt  *time.Time `bun:"confirmed_at"`
	PickedUpAt   *time.Time `bun:"picked_up_at"`
	DeliveredAt  *time.Time `bun:"delivered_at"`
	CompletedAt  *time.Time `bun:"completed_at"`
	CancelledAt  *time.Time `bun:"cancelled_at"`
	CancelReason string     `bun:"cancel_reason"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// WeightVariancePct computes |actual-declared|/declared as a percentage.
func WeightVariancePct(declared, actual decimal.Decimal) decimal.Decimal {
	if declared.IsZero() {
		return decimal.Zero
	}
	return actual.Sub(declared).Abs().
		Div(declared).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
