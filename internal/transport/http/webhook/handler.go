// Package webhook receives inbound callbacks from external collaborators:
// the payment provider's capture notification and the shipment carrier's
// pickup report. Both are retried by their senders, so every handler is
// idempotent.
package webhook

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agritrade/stockyard/internal/presentation/http/response"
	service "github.com/agritrade/stockyard/internal/service/order"
	"github.com/agritrade/stockyard/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/agritrade/stockyard/transport/http/webhook")

// Handler exposes webhook endpoints over HTTP.
type Handler struct {
	orders *service.Service
}

// NewHandler constructs a webhook Handler.
func NewHandler(orders *service.Service) *Handler {
	return &Handler{orders: orders}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/webhooks")
	g.POST("/payments/captured", h.paymentCaptured)
	g.POST("/shipments/pickup", h.shipmentPickup)
}

func (h *Handler) paymentCaptured(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		OrderID   int64  `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Amount    string `json:"amount"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid amount", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "webhooks.paymentCaptured", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
		attribute.String("payment.id", payload.PaymentID),
	))
	defer span.End()

	if err := h.orders.OnDepositCaptured(ctx, payload.OrderID, payload.PaymentID, amount); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) shipmentPickup(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		OrderID        int64    `json:"order_id"`
		ActualWeightKg string   `json:"actual_weight_kg"`
		Photos         []string `json:"photos"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	weight, err := decimal.NewFromString(payload.ActualWeightKg)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid actual_weight_kg", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "webhooks.shipmentPickup", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
	))
	defer span.End()

	if err := h.orders.RecordPickupWeight(ctx, payload.OrderID, weight, payload.Photos); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}
