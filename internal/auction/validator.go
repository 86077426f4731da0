package auction

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ValidateBid decides whether amount from bidderID is acceptable against a
// snapshot of the item and its bid history. It has no side effects.
//
// Rules, in order:
//  1. the item must be active
//  2. the amount must be strictly greater than the current winning price
//  3. the amount must not be negative
//
// Any amount <= the winning price is ErrBidTooLow, so rule 3 only fires for
// an item whose starting price is itself negative.
//
// Owners may bid on their own items.
func ValidateBid(item model.Item, history []model.Bid, amount decimal.Decimal, bidderID string) error {
	if bidderID == "" {
		return fmt.Errorf("validate: %w - missing bidder", biddingerrors.ErrInvalidBid)
	}
	if !item.Active {
		return fmt.Errorf("validate: item %s: %w", item.ItemID, biddingerrors.ErrItemClosed)
	}

	highest := WinningPrice(item, history)
	if !amount.GreaterThan(highest) {
		return fmt.Errorf("validate: %w - current highest bid is %s", biddingerrors.ErrBidTooLow, highest.StringFixed(model.MonetaryPrecision))
	}
	if amount.IsNegative() {
		return fmt.Errorf("validate: %w - got %s", biddingerrors.ErrNonPositiveAmount, amount.StringFixed(model.MonetaryPrecision))
	}
	return nil
}

// WinningPrice is the maximum amount in history, or the starting price when there are no bids
func WinningPrice(item model.Item, history []model.Bid) decimal.Decimal {
	if top, ok := WinningBid(history); ok {
		return top.Amount
	}
	return item.StartingPrice
}

// WinningBid returns the highest bid, ties going to the earliest one
func WinningBid(history []model.Bid) (model.Bid, bool) {
	if len(history) == 0 {
		return model.Bid{}, false
	}
	return lo.MaxBy(history, func(a, b model.Bid) bool {
		if a.Amount.Equal(b.Amount) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Amount.GreaterThan(b.Amount)
	}), true
}
