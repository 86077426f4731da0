package integrationtests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"auction-engine/internal/auction"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/locker"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// testEnv is a full API stack over an in-memory ledger and a manual clock
type testEnv struct {
	router  *gin.Engine
	clock   *auction.ManualClock
	repo    *repository.MemoryRepo
	service *bidding.BiddingService
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := repository.NewMemoryRepo()
	clock := auction.NewManualClock(start)
	registry := auction.NewRegistry(repo, locker.NewLocalLocker(time.Second), auction.WithClock(clock))
	service := bidding.NewBiddingService(repo, registry, bidding.DefaultConfig())

	return &testEnv{
		router:  server.SetupRouter(service),
		clock:   clock,
		repo:    repo,
		service: service,
	}
}

// Execute runs a request as userID (anonymous when empty) and decodes the envelope
func (e *testEnv) Execute(t *testing.T, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(server.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// RegisterUser creates a user over the API and returns its id
func (e *testEnv) RegisterUser(t *testing.T, username string) string {
	t.Helper()

	resp, w := e.Execute(t, http.MethodPost, "/users", "", helpers.RegisterUserRequest{Username: username})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return data(t, resp)["user_id"].(string)
}

// CreateItem lists an item for ownerID closing closeIn after the current clock
func (e *testEnv) CreateItem(t *testing.T, ownerID, title string, startingPrice int64, closeIn time.Duration) string {
	t.Helper()

	price := decimal.NewFromInt(startingPrice)
	closeTime := e.clock.Now().Add(closeIn)
	resp, w := e.Execute(t, http.MethodPost, "/items", ownerID, helpers.CreateItemRequest{
		Title:         title,
		Description:   fmt.Sprintf("%s for sale", title),
		StartingPrice: &price,
		CloseTime:     &closeTime,
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return data(t, resp)["item_id"].(string)
}

// Bid places a bid and returns the decoded envelope and recorder
func (e *testEnv) Bid(t *testing.T, userID, itemID, amount string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	return e.Execute(t, http.MethodPost, "/bids", userID, fmt.Sprintf(`{"item_id":%q,"amount":%q}`, itemID, amount))
}

// WinningPrice reads the item over the API
func (e *testEnv) WinningPrice(t *testing.T, itemID string) decimal.Decimal {
	t.Helper()

	resp, w := e.Execute(t, http.MethodGet, "/items/"+itemID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decimal.RequireFromString(data(t, resp)["winning_price"].(string))
}

func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()

	d, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return d
}
