package event

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/agritrade/stockyard/internal/entity"
)

// NewNotificationEvent builds an outbox row for the notifications topic.
func NewNotificationEvent(topic, audience, eventType string, payload map[string]any, at time.Time) (*entity.OutboxEvent, error) {
	body, err := json.Marshal(Notification{
		Audience:  audience,
		EventType: eventType,
		Payload:   payload,
		EmittedAt: at,
	})
	if err != nil {
		return nil, err
	}
	return &entity.OutboxEvent{
		Topic:     topic,
		Key:       eventType,
		EventType: eventType,
		Payload:   body,
		CreatedAt: at,
	}, nil
}

// NewBidAcceptedEvent builds an outbox row for the bids topic, keyed by
// auction id so one auction's bids stay in one partition, in order.
func NewBidAcceptedEvent(topic string, a *entity.Auction, bid *entity.Bid, extended bool, at time.Time) (*entity.OutboxEvent, error) {
	body, err := json.Marshal(BidAccepted{
		BidID:        bid.ID,
		AuctionID:    bid.AuctionID,
		SellerID:     a.SellerID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount.String(),
		OriginIP:     bid.OriginIP,
		OriginDevice: bid.OriginDevice,
		Extended:     extended,
		AcceptedAt:   at,
	})
	if err != nil {
		return nil, err
	}
	return &entity.OutboxEvent{
		Topic:     topic,
		Key:       strconv.FormatInt(bid.AuctionID, 10),
		EventType: TypeBidAccepted,
		Payload:   body,
		CreatedAt: at,
	}, nil
}
