package helpers

import (
	bidding "auction-engine/internal/biddingService"
	model "auction-engine/internal/models"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	ItemID string           `json:"item_id" binding:"required"`
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type RaiseBidRequest struct {
	Increment decimal.Decimal `json:"increment"`
}

type CreateItemRequest struct {
	Title         string           `json:"title" binding:"required,max=100"`
	Description   string           `json:"description" binding:"max=2000"`
	StartingPrice *decimal.Decimal `json:"starting_price" binding:"required"`
	CloseTime     *time.Time       `json:"close_time" binding:"required"`
}

type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid          BidResponse     `json:"bid"`
	WinningPrice decimal.Decimal `json:"winning_price"`
}

type WinnerResponse struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

type ItemResponse struct {
	ItemID        string          `json:"item_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	OwnerID       string          `json:"owner_id"`
	Active        bool            `json:"active"`
	CloseTime     string          `json:"close_time"`
	CreatedAt     string          `json:"created_at"`
	ClosedAt      string          `json:"closed_at,omitempty"`
}

type ItemDetailsResponse struct {
	ItemResponse
	State        string          `json:"state"`
	WinningPrice decimal.Decimal `json:"winning_price"`
	BidCount     int             `json:"bid_count"`
	Winner       *WinnerResponse `json:"winner,omitempty"`
}

type UserResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type SweepResponse struct {
	Closed int `json:"closed"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ToBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		ItemID:    bid.ItemID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		CreatedAt: formatTime(bid.CreatedAt),
	}
}

func ToBidResponses(bids []model.Bid) []BidResponse {
	return lo.Map(bids, func(b model.Bid, _ int) BidResponse {
		return ToBidResponse(b)
	})
}

func ToItemResponse(item model.Item) ItemResponse {
	resp := ItemResponse{
		ItemID:        item.ItemID,
		Title:         item.Title,
		Description:   item.Description,
		StartingPrice: item.StartingPrice,
		OwnerID:       item.OwnerID,
		Active:        item.Active,
		CloseTime:     formatTime(item.CloseTime),
		CreatedAt:     formatTime(item.CreatedAt),
	}
	if item.ClosedAt != nil {
		resp.ClosedAt = formatTime(*item.ClosedAt)
	}
	return resp
}

func ToItemResponses(items []model.Item) []ItemResponse {
	return lo.Map(items, func(item model.Item, _ int) ItemResponse {
		return ToItemResponse(item)
	})
}

func ToItemDetailsResponse(details bidding.ItemDetails) ItemDetailsResponse {
	resp := ItemDetailsResponse{
		ItemResponse: ToItemResponse(details.Item),
		State:        string(details.State),
		WinningPrice: details.WinningPrice,
		BidCount:     len(details.Bids),
	}
	if details.Winner != nil {
		resp.Winner = &WinnerResponse{
			UserID:   details.Winner.UserID,
			Username: details.WinnerName,
			Amount:   details.Winner.Amount,
		}
	}
	return resp
}

func ToItemDetailsResponses(items []bidding.ItemDetails) []ItemDetailsResponse {
	return lo.Map(items, func(d bidding.ItemDetails, _ int) ItemDetailsResponse {
		return ToItemDetailsResponse(d)
	})
}

func ToUserResponse(user model.User) UserResponse {
	return UserResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		CreatedAt: formatTime(user.CreatedAt),
	}
}
