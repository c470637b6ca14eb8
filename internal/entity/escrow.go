package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// EscrowPayment records funds captured for an order and held by the
// platform. Release and refund are mutually exclusive and each may happen
// at most once; the flags are the idempotency guard.
type EscrowPayment struct {
	bun.BaseModel `bun:"table:escrow_payments"`

	ID          int64               `bun:",pk,autoincrement"`
	OrderID     int64               `bun:"order_id,notnull"`
	PaymentID   string              `bun:"payment_id,notnull,unique"`
	Amount      decimal.Decimal     `bun:"amount,type:numeric(14,2),notnull"`
	CapturedAt  time.Time           `bun:"captured_at,notnull"`
	Released    bool                `bun:"released,notnull,default:false"`
	ReleasedAt  *time.Time          `bun:"released_at"`
	ReleasedTo  *int64              `bun:"released_to"`
	ReleasedAmt decimal.NullDecimal `bun:"released_amount,type:numeric(14,2)"`
	Refunded    bool                `bun:"refunded,notnull,default:false"`
	RefundedAt  *time.Time          `bun:"refunded_at"`
	CreatedAt   time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Settled reports whether the escrow has already been finalized.
func (e *EscrowPayment) Settled() bool {
	return e.Released || e.Refunded
}
