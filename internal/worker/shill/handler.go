package shill

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/event"
	"github.com/agritrade/stockyard/internal/messaging"
	shillsvc "github.com/agritrade/stockyard/internal/service/shill"
	"github.com/agritrade/stockyard/internal/worker"
)

var workerTracer = otel.Tracer("github.com/agritrade/stockyard/worker/shill")

// Module registers the fraud-analysis handler on the accepted-bid stream.
var Module = fx.Module("worker_shill",
	fx.Provide(
		fx.Annotate(
			NewBidAcceptedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewBidAcceptedHandler runs the shill detector for every accepted bid.
// The analysis happens here, off the accept path, so bidding latency never
// pays for it.
func NewBidAcceptedHandler(svc *shillsvc.Service, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.shill.analyze", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var ev event.BidAccepted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode accepted bid", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		origin := entity.BidOrigin{IP: ev.OriginIP, Device: ev.OriginDevice}
		if err := svc.Analyze(ctx, ev.AuctionID, ev.SellerID, ev.BidderID, origin); err != nil {
			logger.Error("shill analysis failed",
				zap.Int64("auction_id", ev.AuctionID),
				zap.Int64("bid_id", ev.BidID),
				zap.Error(err),
			)

			span.RecordError(err)
			span.SetStatus(codes.Error, "analysis error")
			return err
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.BidsTopic,
		Handler: handler,
	}
}
