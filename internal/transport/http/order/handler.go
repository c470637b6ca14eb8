package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agritrade/stockyard/internal/dto"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/presentation/http/response"
	service "github.com/agritrade/stockyard/internal/service/order"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/agritrade/stockyard/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/processing", h.processing)
	g.POST("/:id/ready", h.ready)
	g.POST("/:id/delivered", h.delivered)
	g.POST("/:id/disputes", h.openDispute)
	g.POST("/:id/disputes/resolve", h.resolveDispute)
	g.POST("/:id/cancel", h.cancel)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		SellerID         int64  `json:"seller_id"`
		BuyerID          int64  `json:"buyer_id"`
		Quantity         int    `json:"quantity"`
		DeclaredWeightKg string `json:"declared_weight_kg"`
		UnitPrice        string `json:"unit_price"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	weight, err := decimal.NewFromString(payload.DeclaredWeightKg)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid declared_weight_kg", errorbank.WithCause(err))).Build()
	}
	price, err := decimal.NewFromString(payload.UnitPrice)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid unit_price", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("seller.id", payload.SellerID),
		attribute.Int64("buyer.id", payload.BuyerID),
	))
	defer span.End()

	o, err := h.svc.CreateBuyNow(ctx, service.BuyNowParams{
		SellerID:         payload.SellerID,
		BuyerID:          payload.BuyerID,
		Quantity:         payload.Quantity,
		DeclaredWeightKg: weight,
		UnitPrice:        price,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(o)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(o)).Build()
}

func (h *Handler) confirm(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		SellerID int64 `json:"seller_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirm", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Confirm(ctx, id, payload.SellerID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) processing(c echo.Context) error {
	return h.simpleTransition(c, "orders.processing", h.svc.MarkProcessing)
}

func (h *Handler) ready(c echo.Context) error {
	return h.simpleTransition(c, "orders.ready", h.svc.MarkReadyForPickup)
}

func (h *Handler) delivered(c echo.Context) error {
	return h.simpleTransition(c, "orders.delivered", h.svc.MarkDelivered)
}

func (h *Handler) openDispute(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.openDispute", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.OpenDispute(ctx, id, payload.Reason); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) resolveDispute(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Resolution string `json:"resolution"`
		Settlement string `json:"settlement"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	settlement := decimal.Zero
	if payload.Settlement != "" {
		settlement, err = decimal.NewFromString(payload.Settlement)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid settlement", errorbank.WithCause(err))).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.resolveDispute", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("resolution", payload.Resolution),
	))
	defer span.End()

	if err := h.svc.ResolveDispute(ctx, id, service.DisputeResolution(payload.Resolution), settlement); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Reason == "" {
		payload.Reason = "cancelled by request"
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Cancel(ctx, id, payload.Reason); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) simpleTransition(c echo.Context, spanName string, fn func(ctx context.Context, orderID int64) error) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), spanName, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := fn(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func toDTO(o *entity.Order) dto.OrderResponse {
	out := dto.OrderResponse{
		ID:               o.ID,
		Number:           o.Number,
		Source:           string(o.Source),
		AuctionID:        o.AuctionID,
		SellerID:         o.SellerID,
		BuyerID:          o.BuyerID,
		Quantity:         o.Quantity,
		DeclaredWeightKg: o.DeclaredWeightKg.String(),
		UnitPrice:        o.UnitPrice.String(),
		Subtotal:         o.Subtotal.String(),
		PlatformFee:      o.PlatformFee.String(),
		ShippingFee:      o.ShippingFee.String(),
		Total:            o.Total.String(),
		DepositAmount:    o.DepositAmount.String(),
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		DisputeOpen:      o.DisputeOpen,
		DisputeReason:    o.DisputeReason,
		DepositDueAt:     o.DepositDueAt,
		ConfirmDueAt:     o.ConfirmDueAt,
		DeliveredAt:      o.DeliveredAt,
		CompletedAt:      o.CompletedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.ActualWeightKg.Valid {
		out.ActualWeightKg = o.ActualWeightKg.Decimal.String()
	}
	if o.VariancePct.Valid {
		out.VariancePct = o.VariancePct.Decimal.String()
	}
	if o.FinalAmount.Valid {
		out.FinalAmount = o.FinalAmount.Decimal.String()
	}
	return out
}
