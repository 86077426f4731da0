package handler

import (
	"net/http"

	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// CreateItemHandler handles POST /items
func (h *BiddingHandler) CreateItemHandler(c *gin.Context) {
	user, ok := currentUser(c, "CreateItemHandler")
	if !ok {
		return
	}

	var req helpers.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateItemHandler", err)
		return
	}

	item, err := h.service.CreateItem(
		c.Request.Context(),
		user.UserID,
		helpers.SanitizeTitle(req.Title),
		helpers.SanitizeDescription(req.Description),
		*req.StartingPrice,
		*req.CloseTime,
	)
	if err != nil {
		helpers.HandleServiceError(c, "CreateItemHandler", err, map[string]any{"owner_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToItemResponse(item), "item created successfully")
	helpers.LogSuccess("CreateItemHandler", "item created successfully", map[string]any{
		"item_id":  item.ItemID,
		"owner_id": user.UserID,
	})
}

// ListItemsHandler handles GET /items
func (h *BiddingHandler) ListItemsHandler(c *gin.Context) {
	items, err := h.service.ListItems(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "ListItemsHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToItemDetailsResponses(items), "items retrieved successfully")
}

// GetItemHandler handles GET /items/:item_id
func (h *BiddingHandler) GetItemHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	item, err := h.service.GetItem(c.Request.Context(), itemID)
	if err != nil {
		helpers.HandleServiceError(c, "GetItemHandler", err, map[string]any{"item_id": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToItemDetailsResponse(item), "item retrieved successfully")
}

// CloseItemHandler handles POST /items/:item_id/close
func (h *BiddingHandler) CloseItemHandler(c *gin.Context) {
	user, ok := currentUser(c, "CloseItemHandler")
	if !ok {
		return
	}

	itemID := c.Param("item_id")
	item, err := h.service.CloseItem(c.Request.Context(), itemID, user.UserID)
	if err != nil {
		helpers.HandleServiceError(c, "CloseItemHandler", err, map[string]any{
			"item_id": itemID,
			"user_id": user.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToItemResponse(item), "auction closed successfully")
	helpers.LogSuccess("CloseItemHandler", "auction closed successfully", map[string]any{
		"item_id": itemID,
		"user_id": user.UserID,
	})
}

// SweepHandler handles POST /admin/sweep
func (h *BiddingHandler) SweepHandler(c *gin.Context) {
	n, err := h.service.Sweep(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "SweepHandler", err, map[string]any{"closed": n})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.SweepResponse{Closed: n}, "sweep completed")
}
