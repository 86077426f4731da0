package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonetaryPrecision is the number of decimal places kept for prices and bid amounts
const MonetaryPrecision int32 = 2

// User represents a registered participant in the auction
type User struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Item represents an auction listing.
// CloseTime is fixed at creation; Active is the only field deciding whether bids are accepted.
type Item struct {
	ItemID        string          `json:"item_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	OwnerID       string          `json:"owner_id"`
	CloseTime     time.Time       `json:"close_time"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// Bid represents a user's bid on an item. Bids are never updated once recorded.
type Bid struct {
	BidID     string          `json:"bid_id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// HasMonetaryPrecision reports whether amount needs no more than
// MonetaryPrecision decimal places. Trailing zeros do not count.
func HasMonetaryPrecision(amount decimal.Decimal) bool {
	return amount.Truncate(MonetaryPrecision).Equal(amount)
}
