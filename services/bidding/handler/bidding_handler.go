//go:generate mockgen -package=handler -destination=mock_bidding_handler.go -source=bidding_handler.go

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, itemID, userID string, amount decimal.Decimal) (model.Bid, decimal.Decimal, error)
	RaiseOwnBid(ctx context.Context, itemID, userID string, increment decimal.Decimal) (model.Bid, decimal.Decimal, error)
	CreateItem(ctx context.Context, ownerID, title, description string, startingPrice decimal.Decimal, closeTime time.Time) (model.Item, error)
	CloseItem(ctx context.Context, itemID, requesterID string) (model.Item, error)
	Sweep(ctx context.Context) (int, error)
	GetItem(ctx context.Context, itemID string) (bidding.ItemDetails, error)
	ListItems(ctx context.Context) ([]bidding.ItemDetails, error)
	RegisterUser(ctx context.Context, username string) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetBidsForItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]model.Item, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// currentUser aborts with 401 when the identity middleware did not run
func currentUser(c *gin.Context, handlerName string) (model.User, bool) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.AbortWithServiceError(c, handlerName, biddingerrors.ErrUnauthenticated, nil)
	}
	return user, ok
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	user, ok := currentUser(c, "RecordBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bid, price, err := h.service.PlaceBid(c.Request.Context(), req.ItemID, user.UserID, *req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "RecordBidHandler", err, map[string]any{
			"item_id": req.ItemID,
			"user_id": user.UserID,
			"amount":  req.Amount.String(),
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Bid:          helpers.ToBidResponse(bid),
		WinningPrice: price,
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": bid.ItemID,
		"user_id": user.UserID,
		"amount":  bid.Amount.String(),
	})
}

// RaiseBidHandler handles POST /items/:item_id/raise
func (h *BiddingHandler) RaiseBidHandler(c *gin.Context) {
	user, ok := currentUser(c, "RaiseBidHandler")
	if !ok {
		return
	}

	// an empty body means the configured default increment
	var req helpers.RaiseBidRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		helpers.HandleBindError(c, "RaiseBidHandler", err)
		return
	}

	itemID := c.Param("item_id")
	bid, price, err := h.service.RaiseOwnBid(c.Request.Context(), itemID, user.UserID, req.Increment)
	if err != nil {
		helpers.HandleServiceError(c, "RaiseBidHandler", err, map[string]any{
			"item_id": itemID,
			"user_id": user.UserID,
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Bid:          helpers.ToBidResponse(bid),
		WinningPrice: price,
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid raised successfully")
	helpers.LogSuccess("RaiseBidHandler", "bid raised successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": itemID,
		"user_id": user.UserID,
		"amount":  bid.Amount.String(),
	})
}

// GetBidsByItemHandler handles GET /items/:item_id/bids
func (h *BiddingHandler) GetBidsByItemHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	bids, err := h.service.GetBidsForItem(c.Request.Context(), itemID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.HandleServiceError(c, "GetBidsByItemHandler", err, map[string]any{"item_id": itemID})
		return
	}

	resp := helpers.ToBidResponses(bids)

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByItemHandler", "bids retrieved successfully", map[string]any{
		"item_id": itemID,
		"count":   len(resp),
	})
}

// GetWinningBidHandler handles GET /items/:item_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), itemID)
	if err != nil {
		// For auction, winning bid not found -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"item_id": itemID})
			return
		}
		helpers.HandleServiceError(c, "GetWinningBidHandler", err, map[string]any{"item_id": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": bid.ItemID,
		"user_id": bid.UserID,
		"amount":  bid.Amount.String(),
	})
}
