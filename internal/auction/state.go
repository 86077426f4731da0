package auction

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of an auction. Closed is terminal.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Auction is the state machine of a single item: the item plus its bid
// history. The winning price is always derived from the history.
// An Auction is not safe for concurrent use; the Registry hands it out
// only while the item lock is held.
type Auction struct {
	item model.Item
	bids []model.Bid

	accepted []model.Bid
	closedAt *time.Time
}

// NewAuction builds a state machine over an item and its bids in acceptance order
func NewAuction(item model.Item, bids []model.Bid) *Auction {
	return &Auction{
		item: item,
		bids: append([]model.Bid{}, bids...),
	}
}

// Snapshot is a read-only view of an auction
type Snapshot struct {
	Item         model.Item      `json:"item"`
	Bids         []model.Bid     `json:"bids"`
	State        State           `json:"state"`
	WinningPrice decimal.Decimal `json:"winning_price"`
	Winner       *model.Bid      `json:"winner,omitempty"`
}

func (a *Auction) Item() model.Item {
	return a.item
}

// Bids returns a copy of the bid history
func (a *Auction) Bids() []model.Bid {
	return append([]model.Bid{}, a.bids...)
}

func (a *Auction) State() State {
	if a.item.Active {
		return StateOpen
	}
	return StateClosed
}

// Expired reports whether the close time has been reached. An expired
// auction keeps accepting bids until it is explicitly closed.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.item.CloseTime)
}

// CurrentWinningPrice is the highest bid amount, or the starting price if unbid
func (a *Auction) CurrentWinningPrice() decimal.Decimal {
	return WinningPrice(a.item, a.bids)
}

// Winner returns the highest bid (earliest on ties); false when there are no bids
func (a *Auction) Winner() (model.Bid, bool) {
	return WinningBid(a.bids)
}

// AcceptBid validates a bid and appends it with a timestamp strictly after
// the previous bid. A rejected bid leaves the auction unchanged.
func (a *Auction) AcceptBid(bidID string, amount decimal.Decimal, bidderID string, now time.Time) (model.Bid, error) {
	if err := ValidateBid(a.item, a.bids, amount, bidderID); err != nil {
		return model.Bid{}, err
	}

	ts := now.UTC().Truncate(time.Microsecond)
	if n := len(a.bids); n > 0 {
		if last := a.bids[n-1].CreatedAt; !ts.After(last) {
			ts = last.Add(time.Microsecond)
		}
	}

	bid := model.Bid{
		BidID:     bidID,
		ItemID:    a.item.ItemID,
		UserID:    bidderID,
		Amount:    amount,
		CreatedAt: ts,
	}
	a.bids = append(a.bids, bid)
	a.accepted = append(a.accepted, bid)
	return bid, nil
}

// Close moves the auction from open to closed. The close is never stamped
// earlier than the last accepted bid.
func (a *Auction) Close(now time.Time) error {
	if !a.item.Active {
		return fmt.Errorf("close item %s: %w", a.item.ItemID, biddingerrors.ErrAlreadyClosed)
	}

	closedAt := now.UTC().Truncate(time.Microsecond)
	if n := len(a.bids); n > 0 && closedAt.Before(a.bids[n-1].CreatedAt) {
		closedAt = a.bids[n-1].CreatedAt
	}
	a.item.Active = false
	a.item.ClosedAt = &closedAt
	a.closedAt = &closedAt
	return nil
}

// Snapshot captures the current derived view
func (a *Auction) Snapshot() Snapshot {
	snap := Snapshot{
		Item:         a.item,
		Bids:         a.Bids(),
		State:        a.State(),
		WinningPrice: a.CurrentWinningPrice(),
	}
	if winner, ok := a.Winner(); ok {
		snap.Winner = &winner
	}
	return snap
}

// pending returns the changes made since the auction was loaded
func (a *Auction) pending() ([]model.Bid, *time.Time) {
	return a.accepted, a.closedAt
}
