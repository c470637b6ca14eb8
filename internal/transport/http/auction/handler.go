package auction

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agritrade/stockyard/internal/dto"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/presentation/http/response"
	service "github.com/agritrade/stockyard/internal/service/auction"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/agritrade/stockyard/transport/http/auction")

// Handler exposes auction endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an auction Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/auctions")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.GET("/:id/bids", h.listBids)
	g.POST("/:id/bids", h.placeBid)
	g.POST("/:id/reserve-decision", h.reserveDecision)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		SellerID      int64     `json:"seller_id"`
		LotNumber     string    `json:"lot_number"`
		LotWeightKg   string    `json:"lot_weight_kg"`
		StartingPrice string    `json:"starting_price"`
		ReservePrice  string    `json:"reserve_price"`
		BidIncrement  string    `json:"bid_increment"`
		AutoExtend    *bool     `json:"auto_extend"`
		MaxExtensions int       `json:"max_extensions"`
		StartAt       time.Time `json:"start_at"`
		EndAt         time.Time `json:"end_at"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.SellerID == 0 || payload.LotNumber == "" {
		return b.WithError(errorbank.BadRequest("seller_id and lot_number are required")).Build()
	}

	weight, err := decimal.NewFromString(payload.LotWeightKg)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid lot_weight_kg", errorbank.WithCause(err))).Build()
	}
	starting, err := decimal.NewFromString(payload.StartingPrice)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid starting_price", errorbank.WithCause(err))).Build()
	}
	increment, err := decimal.NewFromString(payload.BidIncrement)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid bid_increment", errorbank.WithCause(err))).Build()
	}

	a := &entity.Auction{
		SellerID:      payload.SellerID,
		LotNumber:     payload.LotNumber,
		LotWeightKg:   weight,
		StartingPrice: starting,
		BidIncrement:  increment,
		AutoExtend:    true,
		MaxExtensions: payload.MaxExtensions,
		StartAt:       payload.StartAt,
		EndAt:         payload.EndAt,
	}
	if payload.AutoExtend != nil {
		a.AutoExtend = *payload.AutoExtend
	}
	if payload.ReservePrice != "" {
		reserve, err := decimal.NewFromString(payload.ReservePrice)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid reserve_price", errorbank.WithCause(err))).Build()
		}
		a.ReservePrice = decimal.NewNullDecimal(reserve)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auctions.create", trace.WithAttributes(
		attribute.String("auction.lot_number", a.LotNumber),
	))
	defer span.End()

	if err := h.svc.Create(ctx, a); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(a)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auctions.getByID", trace.WithAttributes(attribute.Int64("auction.id", id)))
	defer span.End()

	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(a)).Build()
}

func (h *Handler) listBids(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auctions.listBids", trace.WithAttributes(attribute.Int64("auction.id", id)))
	defer span.End()

	bids, err := h.svc.Bids(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, toBidDTO(&bids[i]))
	}
	return b.WithData(out).Build()
}

func (h *Handler) placeBid(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		BidderID int64  `json:"bidder_id"`
		Amount   string `json:"amount"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.BidderID == 0 {
		return b.WithError(errorbank.BadRequest("bidder_id is required")).Build()
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid amount", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auctions.placeBid", trace.WithAttributes(
		attribute.Int64("auction.id", id),
		attribute.Int64("bidder.id", payload.BidderID),
	))
	defer span.End()

	origin := entity.BidOrigin{
		IP:     c.RealIP(),
		Device: c.Request().UserAgent(),
	}

	bid, err := h.svc.AcceptBid(ctx, id, payload.BidderID, amount, origin)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toBidDTO(bid)).Build()
}

func (h *Handler) reserveDecision(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		SellerID int64  `json:"seller_id"`
		Decision string `json:"decision"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.SellerID == 0 {
		return b.WithError(errorbank.BadRequest("seller_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auctions.reserveDecision", trace.WithAttributes(
		attribute.Int64("auction.id", id),
		attribute.String("decision", payload.Decision),
	))
	defer span.End()

	switch payload.Decision {
	case "accept":
		err = h.svc.AcceptBelowReserve(ctx, id, payload.SellerID)
	case "decline":
		err = h.svc.DeclineBelowReserve(ctx, id, payload.SellerID)
	default:
		err = errorbank.BadRequest("decision must be accept or decline")
	}
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusNoContent).Build()
}

func toDTO(a *entity.Auction) dto.AuctionResponse {
	out := dto.AuctionResponse{
		ID:              a.ID,
		SellerID:        a.SellerID,
		LotNumber:       a.LotNumber,
		LotWeightKg:     a.LotWeightKg.String(),
		StartingPrice:   a.StartingPrice.String(),
		BidIncrement:    a.BidIncrement.String(),
		CurrentPrice:    a.CurrentPrice.String(),
		MinimumNextBid:  a.MinimumNextBid().String(),
		CurrentBidderID: a.CurrentBidderID,
		BidCount:        a.BidCount,
		Status:          string(a.Status),
		AutoExtend:      a.AutoExtend,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		ExtensionCount:  a.ExtensionCount,
		MaxExtensions:   a.MaxExtensions,
		ReserveMet:      a.ReserveMet,
		CreatedAt:       a.CreatedAt,
	}
	if a.FinalPrice.Valid {
		out.FinalPrice = a.FinalPrice.Decimal.String()
	}
	return out
}

func toBidDTO(bid *entity.Bid) dto.BidResponse {
	return dto.BidResponse{
		ID:        bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount.String(),
		CreatedAt: bid.CreatedAt,
	}
}
