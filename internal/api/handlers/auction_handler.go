package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"auction-bidding/internal/api/middleware"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	bidService     *services.BidService
	clock          domain.Clock
	log            logger.Logger
}

type CreateAuctionRequest struct {
	StartingPrice decimal.Decimal `json:"starting_price"`
	CloseTime     time.Time       `json:"close_time"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	BidID       string    `json:"bid_id"`
	AuctionID   string    `json:"auction_id"`
	BidderID    string    `json:"bidder_id"`
	Amount      string    `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type AuctionResponse struct {
	AuctionID     string       `json:"auction_id"`
	SellerID      string       `json:"seller_id"`
	StartingPrice string       `json:"starting_price"`
	CurrentPrice  string       `json:"current_price"`
	CloseTime     time.Time    `json:"close_time"`
	IsActive      bool         `json:"is_active"`
	Status        string       `json:"status"`
	WinnerID      string       `json:"winner_id,omitempty"`
	HighestBid    *BidResponse `json:"highest_bid,omitempty"`
	TimeRemaining float64      `json:"time_remaining_seconds"`
}

type RejectionResponse struct {
	Error        string `json:"error"`
	Reason       string `json:"reason"`
	CurrentPrice string `json:"current_price,omitempty"`
}

func NewAuctionHandler(auctionManager *services.AuctionManager, bidService *services.BidService,
	clock domain.Clock, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		bidService:     bidService,
		clock:          clock,
		log:            log.With("component", "auction_handler"),
	}
}

// Register mounts the auction routes on g.
func (h *AuctionHandler) Register(g *echo.Group, identity domain.IdentityProvider) {
	auth := middleware.Authenticate(identity)

	g.POST("/auctions", h.CreateAuction, auth, middleware.RequireRole(domain.RoleSeller))
	g.GET("/auctions/:id", h.GetAuction)
	g.GET("/auctions/:id/bids", h.GetBidHistory)
	g.POST("/auctions/:id/bids", h.PlaceBid, auth, middleware.RequireRole(domain.RoleBuyer))
	g.GET("/bids/mine", h.ListMyBids, auth)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	seller := middleware.IdentityFrom(c)

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if !req.CloseTime.After(h.clock.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Close time must be in the future"})
	}
	if req.StartingPrice.Sign() <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must be positive"})
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), seller.UserID, req.StartingPrice, req.CloseTime)
	if errors.Is(err, domain.ErrInvalidAuction) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	return c.JSON(http.StatusCreated, auctionResponse(&domain.AuctionState{
		AuctionID:     auction.ID,
		SellerID:      auction.SellerID,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		CloseTime:     auction.CloseTime,
		IsActive:      auction.IsActive,
		TimeRemaining: domain.TimeRemaining(auction, h.clock.Now()),
	}))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	state, err := h.auctionManager.GetAuctionState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, auctionResponse(state))
}

func (h *AuctionHandler) GetBidHistory(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		}
		limit = n
	}

	bids, err := h.bidService.GetBidHistory(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bidResponses(bids))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	bidder := middleware.IdentityFrom(c)
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, RejectionResponse{
			Error:  "amount must be a decimal number",
			Reason: string(domain.ReasonValidation),
		})
	}

	bid, err := h.bidService.SubmitBid(c.Request().Context(), auctionID, bidder.UserID, req.Amount)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bidResponse(bid))
}

func (h *AuctionHandler) ListMyBids(c echo.Context) error {
	bidder := middleware.IdentityFrom(c)

	bids, err := h.bidService.ListBidsByBidder(c.Request().Context(), bidder.UserID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bidResponses(bids))
}

var reasonStatus = map[domain.RejectionReason]int{
	domain.ReasonNotFound:            http.StatusNotFound,
	domain.ReasonAuctionClosed:       http.StatusConflict,
	domain.ReasonSelfBidForbidden:    http.StatusForbidden,
	domain.ReasonBidTooLow:           http.StatusConflict,
	domain.ReasonValidation:          http.StatusBadRequest,
	domain.ReasonConcurrencyConflict: http.StatusConflict,
}

func (h *AuctionHandler) writeError(c echo.Context, err error) error {
	if rejection, ok := domain.AsRejection(err); ok {
		resp := RejectionResponse{Error: rejection.Error(), Reason: string(rejection.Reason)}
		if !rejection.CurrentPrice.IsZero() {
			resp.CurrentPrice = rejection.CurrentPrice.String()
		}
		return c.JSON(reasonStatus[rejection.Reason], resp)
	}
	if reason, ok := domain.ReasonFor(err); ok {
		return c.JSON(reasonStatus[reason], RejectionResponse{Error: err.Error(), Reason: string(reason)})
	}

	h.log.Error("Request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func auctionResponse(state *domain.AuctionState) AuctionResponse {
	resp := AuctionResponse{
		AuctionID:     state.AuctionID,
		SellerID:      state.SellerID,
		StartingPrice: state.StartingPrice.String(),
		CurrentPrice:  state.CurrentPrice.String(),
		CloseTime:     state.CloseTime,
		IsActive:      state.IsActive,
		Status:        domain.StatusActive.String(),
		WinnerID:      state.WinnerID,
		TimeRemaining: state.TimeRemaining.Seconds(),
	}
	if !state.IsActive {
		resp.Status = domain.StatusSettled.String()
	}
	if state.HighestBid != nil {
		b := bidResponse(state.HighestBid)
		resp.HighestBid = &b
	}
	return resp
}

func bidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		BidID:       b.ID,
		AuctionID:   b.AuctionID,
		BidderID:    b.BidderID,
		Amount:      b.Amount.String(),
		SubmittedAt: b.SubmittedAt,
	}
}

func bidResponses(bids []*domain.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidResponse(b))
	}
	return out
}
