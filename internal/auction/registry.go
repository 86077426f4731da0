package auction

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/locker"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Registry owns the set of auctions. Every state transition goes through
// it while the item's lock is held, so bids, owner closes and the sweep on
// the same item are serialized while different items proceed in parallel.
type Registry struct {
	store  repository.AuctionDB
	locker locker.Locker
	clock  Clock
	newID  func() string
}

type RegistryOption func(*Registry)

// WithClock overrides the wall clock
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithIDGenerator overrides how item and bid ids are minted
func WithIDGenerator(f func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = f
	}
}

// NewRegistry creates a registry over a ledger store and a per-item locker
func NewRegistry(store repository.AuctionDB, lk locker.Locker, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		locker: lk,
		clock:  SystemClock{},
		newID:  utils.GenerateID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock returns the registry's time source
func (r *Registry) Clock() Clock {
	return r.clock
}

// NewID mints an identifier with the registry's generator
func (r *Registry) NewID() string {
	return r.newID()
}

// Create lists a new open item. closeTime must be strictly after now and
// startingPrice must not be negative.
func (r *Registry) Create(ctx context.Context, ownerID, title, description string, startingPrice decimal.Decimal, closeTime time.Time) (model.Item, error) {
	now := r.clock.Now().UTC().Truncate(time.Microsecond)

	switch {
	case ownerID == "":
		return model.Item{}, fmt.Errorf("registry: %w - missing owner", biddingerrors.ErrInvalidCreationParams)
	case strings.TrimSpace(title) == "":
		return model.Item{}, fmt.Errorf("registry: %w - empty title", biddingerrors.ErrInvalidCreationParams)
	case startingPrice.IsNegative():
		return model.Item{}, fmt.Errorf("registry: %w - negative starting price %s", biddingerrors.ErrInvalidCreationParams, startingPrice)
	case !model.HasMonetaryPrecision(startingPrice):
		return model.Item{}, fmt.Errorf("registry: %w - starting price %s has more than %d decimal places",
			biddingerrors.ErrInvalidCreationParams, startingPrice, model.MonetaryPrecision)
	case !closeTime.After(now):
		return model.Item{}, fmt.Errorf("registry: %w - close time %s is not after %s",
			biddingerrors.ErrInvalidCreationParams, closeTime.UTC().Format(time.RFC3339), now.Format(time.RFC3339))
	}

	item := model.Item{
		ItemID:        r.newID(),
		Title:         strings.TrimSpace(title),
		Description:   description,
		StartingPrice: startingPrice,
		OwnerID:       ownerID,
		CloseTime:     closeTime.UTC().Truncate(time.Microsecond),
		Active:        true,
		CreatedAt:     now,
	}
	if err := r.store.CreateItem(ctx, item); err != nil {
		return model.Item{}, fmt.Errorf("registry: failed to create item: %w", err)
	}

	utils.Info("Registry: item created", map[string]any{
		"item_id":    item.ItemID,
		"owner_id":   ownerID,
		"close_time": item.CloseTime.Format(time.RFC3339),
	})
	return item, nil
}

// Get returns a snapshot of one auction
func (r *Registry) Get(ctx context.Context, itemID string) (Snapshot, error) {
	a, err := r.load(ctx, itemID)
	if err != nil {
		return Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// List returns snapshots of all auctions, newest first
func (r *Registry) List(ctx context.Context) ([]Snapshot, error) {
	items, err := r.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to list items: %w", err)
	}

	snaps := make([]Snapshot, 0, len(items))
	for _, item := range items {
		bids, err := r.store.GetBidsByItem(ctx, item.ItemID)
		if err != nil {
			return nil, fmt.Errorf("registry: failed to load bids for item %s: %w", item.ItemID, err)
		}
		snaps = append(snaps, NewAuction(item, bids).Snapshot())
	}
	return snaps, nil
}

// Close closes an item on behalf of requesterID. Only the owner may close
// before the close time; anyone may close once it has passed.
func (r *Registry) Close(ctx context.Context, itemID, requesterID string) (model.Item, error) {
	var closed model.Item
	err := r.withItem(ctx, itemID, false, func(a *Auction) error {
		now := r.clock.Now()
		if a.State() == StateClosed {
			return fmt.Errorf("registry: item %s: %w", itemID, biddingerrors.ErrAlreadyClosed)
		}
		if a.Item().OwnerID != requesterID && !a.Expired(now) {
			return fmt.Errorf("registry: item %s: %w", itemID, biddingerrors.ErrNotOwner)
		}
		if err := a.Close(now); err != nil {
			return err
		}
		closed = a.Item()
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}

	utils.Info("Registry: item closed", map[string]any{
		"item_id":      itemID,
		"requester_id": requesterID,
	})
	return closed, nil
}

// Sweep closes every open item whose close time is at or before now and
// returns how many it closed. Items closed concurrently are skipped, so
// repeated sweeps never close an item twice. Failures on single items are
// collected and do not stop the sweep.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := r.store.ListExpiredOpenItems(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("registry: failed to list expired items: %w", err)
	}

	var (
		count int
		errs  error
	)
	for _, item := range expired {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}

		closed := false
		err := r.withItem(ctx, item.ItemID, false, func(a *Auction) error {
			if a.State() == StateClosed || !a.Expired(now) {
				return nil
			}
			closed = true
			return a.Close(now)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("registry: sweep item %s: %w", item.ItemID, err))
			continue
		}
		if closed {
			count++
		}
	}

	if count > 0 || errs != nil {
		fields := map[string]any{
			"closed":    count,
			"candidate": len(expired),
		}
		if errs != nil {
			fields["errors"] = len(multierr.Errors(errs))
		}
		utils.Info("Registry: sweep finished", fields)
	}
	return count, errs
}

// WithItem runs fn with exclusive access to an auction and persists what fn
// did: accepted bids are appended to the ledger, a close is recorded. Nothing
// is persisted when fn returns an error. An open item whose close time has
// passed is closed before fn sees it.
func (r *Registry) WithItem(ctx context.Context, itemID string, fn func(a *Auction) error) error {
	return r.withItem(ctx, itemID, true, fn)
}

func (r *Registry) withItem(ctx context.Context, itemID string, closeExpired bool, fn func(a *Auction) error) error {
	if itemID == "" {
		return fmt.Errorf("registry: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	release, err := r.locker.Acquire(ctx, itemID)
	if err != nil {
		return fmt.Errorf("registry: item %s: %w", itemID, err)
	}
	defer release()

	a, err := r.load(ctx, itemID)
	if err != nil {
		return err
	}

	if closeExpired && a.State() == StateOpen {
		if now := r.clock.Now(); a.Expired(now) {
			if err := r.closeExpired(ctx, a, now); err != nil {
				return err
			}
		}
	}

	if err := fn(a); err != nil {
		return err
	}
	return r.persist(ctx, a)
}

func (r *Registry) closeExpired(ctx context.Context, a *Auction, now time.Time) error {
	if err := a.Close(now); err != nil {
		return err
	}
	if err := r.store.CloseItem(ctx, a.item.ItemID, *a.closedAt); err != nil && !errors.Is(err, biddingerrors.ErrAlreadyClosed) {
		return fmt.Errorf("registry: failed to close expired item %s: %w", a.item.ItemID, err)
	}
	a.closedAt = nil

	utils.Info("Registry: expired item closed on access", map[string]any{
		"item_id":    a.item.ItemID,
		"close_time": a.item.CloseTime.Format(time.RFC3339),
	})
	return nil
}

func (r *Registry) persist(ctx context.Context, a *Auction) error {
	bids, closedAt := a.pending()
	for _, bid := range bids {
		if err := r.store.RecordBidForItem(ctx, bid); err != nil {
			return fmt.Errorf("registry: failed to record bid %s: %w", bid.BidID, err)
		}
	}
	if closedAt != nil {
		if err := r.store.CloseItem(ctx, a.item.ItemID, *closedAt); err != nil {
			return fmt.Errorf("registry: failed to close item %s: %w", a.item.ItemID, err)
		}
	}
	return nil
}

func (r *Registry) load(ctx context.Context, itemID string) (*Auction, error) {
	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	bids, err := r.store.GetBidsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return NewAuction(item, bids), nil
}
