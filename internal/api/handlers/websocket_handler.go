package handlers

import (
	"net/http"

	"auction-bidding/internal/api/middleware"
	"auction-bidding/internal/infrastructure/websocket"
	"auction-bidding/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewBiddingRouter builds the router of the live bidding service.
func NewBiddingRouter(wsHandler *websocket.Handler, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CORS(log))

	router.HandleFunc("/ws/auction/{auctionID}", wsHandler.HandleConnection)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
