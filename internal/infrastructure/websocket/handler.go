package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the gateway
	},
}

const writeTimeout = 10 * time.Second

type BidSubmitter interface {
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error)
}

type AuctionStateReader interface {
	GetAuctionState(ctx context.Context, auctionID string) (*domain.AuctionState, error)
}

type clientMessage struct {
	Type   string          `json:"type"`
	Amount json.RawMessage `json:"amount"`
}

// amountText accepts the amount either as a JSON number or a JSON string.
func (m clientMessage) amountText() string {
	var s string
	if err := json.Unmarshal(m.Amount, &s); err == nil {
		return s
	}
	return string(m.Amount)
}

// Handler serves the live bidding socket at /ws/auction/{auctionID}.
type Handler struct {
	bids        BidSubmitter
	auctions    AuctionStateReader
	identity    domain.IdentityProvider
	connManager *ConnectionManager
	log         logger.Logger
}

func NewHandler(bids BidSubmitter, auctions AuctionStateReader, identity domain.IdentityProvider,
	connManager *ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		bids:        bids,
		auctions:    auctions,
		identity:    identity,
		connManager: connManager,
		log:         log.With("component", "websocket_handler"),
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	caller, err := h.identity.Authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	state, err := h.auctions.GetAuctionState(r.Context(), auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !state.IsActive {
		http.Error(w, "auction is closed", http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, caller.UserID, auctionID)
	if err := h.connManager.RegisterConnection(caller.UserID, auctionID, conn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	if err := conn.Send(stateMessage(state)); err != nil {
		h.log.Warn("Failed to send initial state", "user_id", caller.UserID, "error", err)
	}

	go h.handleMessages(conn, caller)
}

func (h *Handler) handleMessages(conn *Connection, caller *domain.Identity) {
	defer func() {
		h.connManager.Release(conn)
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection read failed", "user_id", caller.UserID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, caller, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		default:
			conn.Send(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Handler) handleBidMessage(conn *Connection, caller *domain.Identity, msg clientMessage) {
	auctionID := conn.AuctionID()

	if caller.Role != domain.RoleBuyer {
		conn.Send(map[string]string{"type": "error", "message": "only buyers may bid"})
		return
	}

	amount, err := domain.ParseAmount(msg.amountText())
	if err != nil {
		conn.Send(map[string]interface{}{
			"type":   "bid_rejected",
			"reason": domain.ReasonValidation,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	bid, err := h.bids.SubmitBid(ctx, auctionID, caller.UserID, amount)
	if err == nil {
		conn.Send(map[string]interface{}{
			"type":         "bid_accepted",
			"bid_id":       bid.ID,
			"amount":       bid.Amount.String(),
			"submitted_at": bid.SubmittedAt,
		})
		return
	}

	if rejection, ok := domain.AsRejection(err); ok {
		conn.Send(map[string]interface{}{
			"type":          "bid_rejected",
			"reason":        rejection.Reason,
			"current_price": rejection.CurrentPrice.String(),
		})
		return
	}

	h.log.Error("Failed to place bid", "auction_id", auctionID, "user_id", caller.UserID, "error", err)
	conn.Send(map[string]string{"type": "error", "message": "failed to place bid"})
}

func stateMessage(state *domain.AuctionState) map[string]interface{} {
	msg := map[string]interface{}{
		"type":           "auction_state",
		"auction_id":     state.AuctionID,
		"current_price":  state.CurrentPrice.String(),
		"close_time":     state.CloseTime,
		"is_active":      state.IsActive,
		"time_remaining": state.TimeRemaining.Seconds(),
	}
	if state.HighestBid != nil {
		msg["bidder_id"] = state.HighestBid.BidderID
	}
	return msg
}

// Connection wraps a gorilla socket. Writes are serialized since broadcasts
// and replies come from different goroutines.
type Connection struct {
	ws        *websocket.Conn
	userID    string
	auctionID string

	writeMu sync.Mutex
}

func NewConnection(ws *websocket.Conn, userID, auctionID string) *Connection {
	return &Connection{
		ws:        ws,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.ws.Close()
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) AuctionID() string {
	return c.auctionID
}
