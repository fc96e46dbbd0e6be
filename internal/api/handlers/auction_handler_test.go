package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-bidding/internal/config"
	"auction-bidding/internal/infrastructure/identity"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/services"
	"auction-bidding/internal/testutil"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type apiEnv struct {
	e     *echo.Echo
	clock *testutil.ManualClock
}

func newAPIEnv(t *testing.T) *apiEnv {
	log := logger.NewNop()
	clock := testutil.NewManualClock(start)
	store := memory.NewStore(clock)
	bus := memory.NewEventBus(16, log)
	manager := services.NewAuctionManager(store, bus, clock, 2, 100, log)
	bids := services.NewBidService(store, manager, bus, clock, config.BiddingConfig{MaxAttempts: 3, Precision: 2}, log)

	e := echo.New()
	NewAuctionHandler(manager, bids, clock, log).Register(e.Group("/api/v1"), identity.NewHeaderProvider())
	return &apiEnv{e: e, clock: clock}
}

func (a *apiEnv) do(t *testing.T, method, path, body, user, role string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(identity.UserIDHeader, user)
		req.Header.Set(identity.RoleHeader, role)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (a *apiEnv) createAuction(t *testing.T, closeIn time.Duration) string {
	t.Helper()
	body := `{"starting_price":"100","close_time":"` + start.Add(closeIn).Format(time.RFC3339) + `"}`
	code, resp := a.do(t, http.MethodPost, "/api/v1/auctions", body, "seller", "seller")
	require.Equal(t, http.StatusCreated, code)
	return resp["auction_id"].(string)
}

func TestAuctionHandler_BiddingFlow(t *testing.T) {
	api := newAPIEnv(t)
	id := api.createAuction(t, time.Hour)

	code, resp := api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"150"}`, "x", "buyer")
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "150", resp["amount"])

	code, resp = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":150}`, "y", "buyer")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "bid_too_low", resp["reason"])
	require.Equal(t, "150", resp["current_price"])

	code, _ = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"151"}`, "y", "buyer")
	require.Equal(t, http.StatusCreated, code)

	code, resp = api.do(t, http.MethodGet, "/api/v1/auctions/"+id, "", "", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "151", resp["current_price"])
	require.Equal(t, true, resp["is_active"])
	require.Equal(t, "y", resp["highest_bid"].(map[string]interface{})["bidder_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auctions/"+id+"/bids?limit=1", nil)
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	require.Equal(t, "151", history[0]["amount"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bids/mine", nil)
	req.Header.Set(identity.UserIDHeader, "x")
	req.Header.Set(identity.RoleHeader, "buyer")
	rec = httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	api.clock.Advance(time.Hour)
	code, resp = api.do(t, http.MethodGet, "/api/v1/auctions/"+id, "", "", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, resp["is_active"])
	require.Equal(t, "settled", resp["status"])
	require.Equal(t, "y", resp["winner_id"])

	code, resp = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"500"}`, "x", "buyer")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "auction_closed", resp["reason"])
}

func TestAuctionHandler_Authorization(t *testing.T) {
	api := newAPIEnv(t)
	body := `{"starting_price":"100","close_time":"` + start.Add(time.Hour).Format(time.RFC3339) + `"}`

	code, _ := api.do(t, http.MethodPost, "/api/v1/auctions", body, "", "")
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/auctions", body, "x", "buyer")
	require.Equal(t, http.StatusForbidden, code)

	id := api.createAuction(t, time.Hour)
	code, _ = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"500"}`, "seller", "seller")
	require.Equal(t, http.StatusForbidden, code)

	// a seller account holding the buyer role still cannot bid on its own auction
	code, resp := api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"500"}`, "seller", "buyer")
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "self_bid_forbidden", resp["reason"])
}

func TestAuctionHandler_Validation(t *testing.T) {
	api := newAPIEnv(t)

	past := `{"starting_price":"100","close_time":"` + start.Add(-time.Minute).Format(time.RFC3339) + `"}`
	code, _ := api.do(t, http.MethodPost, "/api/v1/auctions", past, "seller", "seller")
	require.Equal(t, http.StatusBadRequest, code)

	free := `{"starting_price":"0","close_time":"` + start.Add(time.Hour).Format(time.RFC3339) + `"}`
	code, _ = api.do(t, http.MethodPost, "/api/v1/auctions", free, "seller", "seller")
	require.Equal(t, http.StatusBadRequest, code)

	id := api.createAuction(t, time.Hour)
	code, resp := api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"abc"}`, "x", "buyer")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation_error", resp["reason"])

	code, resp = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/bids", `{"amount":"150.123"}`, "x", "buyer")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation_error", resp["reason"])

	code, _ = api.do(t, http.MethodGet, "/api/v1/auctions/"+id+"/bids?limit=-1", "", "", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = api.do(t, http.MethodGet, "/api/v1/auctions/missing", "", "", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", resp["reason"])
}

func TestBiddingRouter_Health(t *testing.T) {
	router := NewBiddingRouter(nil, logger.NewNop())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}
