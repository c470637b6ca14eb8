package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/database"
	"github.com/agritrade/stockyard/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Auctions seeds example lots if they are missing.
func (s *Seeder) Auctions(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Auction{
		{
			SellerID:      1,
			LotNumber:     "LOT-2026-0001",
			LotWeightKg:   decimal.NewFromInt(480),
			StartingPrice: decimal.NewFromInt(1200),
			ReservePrice:  decimal.NewNullDecimal(decimal.NewFromInt(1800)),
			BidIncrement:  decimal.NewFromInt(50),
			CurrentPrice:  decimal.NewFromInt(1200),
			Status:        entity.AuctionScheduled,
			AutoExtend:    true,
			MaxExtensions: 3,
			StartAt:       now.Add(time.Hour),
			EndAt:         now.Add(25 * time.Hour),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			SellerID:      2,
			LotNumber:     "LOT-2026-0002",
			LotWeightKg:   decimal.NewFromInt(350),
			StartingPrice: decimal.NewFromInt(900),
			BidIncrement:  decimal.NewFromInt(25),
			CurrentPrice:  decimal.NewFromInt(900),
			Status:        entity.AuctionActive,
			AutoExtend:    true,
			MaxExtensions: 3,
			StartAt:       now.Add(-time.Hour),
			EndAt:         now.Add(23 * time.Hour),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	for _, sample := range samples {
		a := sample
		_, err := s.db.NewInsert().Model(&a).
			On("CONFLICT (lot_number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded auctions", zap.Int("count", len(samples)))
	}
	return nil
}
