package handlers

import (
	"net/http"

	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	log       logger.Logger
}

type SummaryResponse struct {
	AuctionID         string         `json:"auction_id"`
	AcceptedBids      int            `json:"accepted_bids"`
	RejectedBids      int            `json:"rejected_bids"`
	RejectionsByCause map[string]int `json:"rejections_by_reason"`
	DistinctBidders   int            `json:"distinct_bidders"`
	HighestAmount     string         `json:"highest_amount"`
	WinnerID          string         `json:"winner_id,omitempty"`
	Settled           bool           `json:"settled"`
}

func NewAnalyticsHandler(analytics *services.AnalyticsService, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, log: log.With("component", "analytics_handler")}
}

func (h *AnalyticsHandler) Register(g *echo.Group) {
	g.GET("/auctions/:id/summary", h.GetSummary)
}

func (h *AnalyticsHandler) GetSummary(c echo.Context) error {
	summary, err := h.analytics.Summarize(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.log.Error("Failed to summarize auction", "auction_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		AuctionID:         summary.AuctionID,
		AcceptedBids:      summary.AcceptedBids,
		RejectedBids:      summary.RejectedBids,
		RejectionsByCause: summary.RejectionsByCause,
		DistinctBidders:   summary.DistinctBidders,
		HighestAmount:     summary.HighestAmount.String(),
		WinnerID:          summary.WinnerID,
		Settled:           summary.Settled,
	})
}
