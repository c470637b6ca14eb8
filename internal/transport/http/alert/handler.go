package alert

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/agritrade/stockyard/internal/dto"
	"github.com/agritrade/stockyard/internal/entity"
	"github.com/agritrade/stockyard/internal/presentation/http/response"
	service "github.com/agritrade/stockyard/internal/service/shill"
)

var httpTracer = otel.Tracer("github.com/agritrade/stockyard/transport/http/alert")

// Handler exposes fraud alerts for the operations review queue.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an alert Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/alerts", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, span := httpTracer.Start(c.Request().Context(), "alerts.list")
	defer span.End()

	alerts, err := h.svc.RecentAlerts(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		out = append(out, toDTO(&alerts[i]))
	}
	return b.WithData(out).Build()
}

func toDTO(a *entity.ShillAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:        a.ID,
		AuctionID: a.AuctionID,
		Pattern:   string(a.Pattern),
		Severity:  string(a.Severity),
		BidderA:   a.BidderA,
		BidderB:   a.BidderB,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	}
}
