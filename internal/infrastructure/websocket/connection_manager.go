package websocket

import (
	"encoding/json"
	"sync"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
)

// ConnectionManager tracks live sockets by auction and by user. A user holds
// at most one socket per auction; registering again replaces the old one.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string]map[string]domain.WebSocketConnection // userID -> auctionID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string]map[string]domain.WebSocketConnection),
		log:         log.With("component", "connection_manager"),
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if old, ok := cm.connections[auctionID][userID]; ok && old != conn {
		old.Close()
	}

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[auctionID][userID] = conn

	if cm.userConns[userID] == nil {
		cm.userConns[userID] = make(map[string]domain.WebSocketConnection)
	}
	cm.userConns[userID][auctionID] = conn

	cm.log.Info("Connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.remove(userID, auctionID)
	cm.log.Info("Connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// Release unregisters conn unless it was already replaced by a newer
// socket for the same user and auction.
func (cm *ConnectionManager) Release(conn domain.WebSocketConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if current, ok := cm.connections[conn.AuctionID()][conn.UserID()]; ok && current == conn {
		cm.remove(conn.UserID(), conn.AuctionID())
	}
}

// remove must be called with the write lock held.
func (cm *ConnectionManager) remove(userID, auctionID string) {
	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, userID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}
	if auctions, exists := cm.userConns[userID]; exists {
		delete(auctions, auctionID)
		if len(auctions) == 0 {
			delete(cm.userConns, userID)
		}
	}
}

// CloseAndUnregisterConnections drops every socket watching auctionID, used
// once the auction settles.
func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns := cm.connections[auctionID]
	for userID, conn := range auctionConns {
		if err := conn.Close(); err != nil {
			cm.log.Warn("Failed to close connection", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
		cm.remove(userID, auctionID)
	}

	cm.log.Info("Connections closed for auction", "auction_id", auctionID, "count", len(auctionConns))
	return nil
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]domain.WebSocketConnection, 0, len(cm.connections[auctionID]))
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]domain.WebSocketConnection, 0, len(cm.userConns[userID]))
	for _, conn := range cm.userConns[userID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	connections := cm.GetConnectionsForAuction(auctionID)
	if len(connections) == 0 {
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	sent := 0
	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(payload)); err != nil {
			cm.log.Warn("Failed to send message", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
			continue
		}
		sent++
	}
	cm.log.Debug("Broadcast to auction", "auction_id", auctionID, "sent", sent, "watchers", len(connections))
	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	connections := cm.GetConnectionsForUser(userID)
	if len(connections) == 0 {
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(payload)); err != nil {
			cm.log.Warn("Failed to send message", "user_id", userID, "error", err)
		}
	}
	return nil
}
