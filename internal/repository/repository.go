//go:generate mockgen -package=repository -destination=mock_repository.go -source=repository.go

package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// AuctionDB defines the ledger storage interface for the auction system.
// RecordBidForItem and CloseItem must be atomic with respect to the item's active flag.
type AuctionDB interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetUserByName(ctx context.Context, username string) (model.User, error)

	CreateItem(ctx context.Context, item model.Item) error
	GetItem(ctx context.Context, itemID string) (model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	ListExpiredOpenItems(ctx context.Context, now time.Time) ([]model.Item, error)
	CloseItem(ctx context.Context, itemID string, closedAt time.Time) error

	RecordBidForItem(ctx context.Context, bid model.Bid) error
	GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]model.Item, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu        sync.RWMutex
	users     map[string]model.User  // key: userID -> value: user
	usernames map[string]string      // key: lower-cased username -> value: userID
	bids      map[string][]model.Bid // key: itemID -> value: list of bids in acceptance order
	items     map[string]model.Item  // key: itemID -> value: item
	userItems map[string][]string    // key: userID -> value: list of itemIDs user has bid on
}

var _ AuctionDB = (*MemoryRepo)(nil)

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:     make(map[string]model.User),
		usernames: make(map[string]string),
		bids:      make(map[string][]model.Bid),
		items:     make(map[string]model.Item),
		userItems: make(map[string][]string),
	}
}

// CreateUser registers a user with a unique username
func (r *MemoryRepo) CreateUser(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, taken := r.usernames[key]; taken {
		return fmt.Errorf("create user %s: %w", user.Username, biddingerrors.ErrUserExists)
	}
	if _, exists := r.users[user.UserID]; exists {
		return fmt.Errorf("create user %s: %w", user.UserID, biddingerrors.ErrUserExists)
	}

	r.users[user.UserID] = user
	r.usernames[key] = user.UserID
	return nil
}

// GetUser returns a registered user by id
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUserByName returns a registered user by username (case-insensitive)
func (r *MemoryRepo) GetUserByName(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.usernames[strings.ToLower(username)]
	if !ok {
		return model.User{}, fmt.Errorf("get user by name %s: %w", username, biddingerrors.ErrUserNotFound)
	}
	return r.users[userID], nil
}

// CreateItem stores a new auction item
func (r *MemoryRepo) CreateItem(_ context.Context, item model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ItemID == "" {
		return fmt.Errorf("create item: %w - empty item ID", biddingerrors.ErrInvalidCreationParams)
	}
	if _, exists := r.items[item.ItemID]; exists {
		return fmt.Errorf("create item %s: %w - duplicate item ID", item.ItemID, biddingerrors.ErrInvalidCreationParams)
	}
	r.items[item.ItemID] = copyItem(item)
	return nil
}

// GetItem returns an item by id
func (r *MemoryRepo) GetItem(_ context.Context, itemID string) (model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return model.Item{}, fmt.Errorf("get item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return copyItem(item), nil
}

// ListItems returns all items, newest first
func (r *MemoryRepo) ListItems(_ context.Context) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, copyItem(item))
	}
	sortNewestFirst(items)
	return items, nil
}

// ListExpiredOpenItems returns active items whose close time is at or before now
func (r *MemoryRepo) ListExpiredOpenItems(_ context.Context, now time.Time) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Item, 0)
	for _, item := range r.items {
		if item.Active && !now.Before(item.CloseTime) {
			items = append(items, copyItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CloseTime.Before(items[j].CloseTime)
	})
	return items, nil
}

// CloseItem flips an active item to closed
func (r *MemoryRepo) CloseItem(_ context.Context, itemID string, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return fmt.Errorf("close item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	if !item.Active {
		return fmt.Errorf("close item %s: %w", itemID, biddingerrors.ErrAlreadyClosed)
	}

	item.Active = false
	item.ClosedAt = &closedAt
	r.items[itemID] = item
	return nil
}

// RecordBidForItem appends a bid if the item exists and is still open
func (r *MemoryRepo) RecordBidForItem(_ context.Context, bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[bid.ItemID]
	if !ok {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, biddingerrors.ErrItemNotFound)
	}
	if !item.Active {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, biddingerrors.ErrItemClosed)
	}

	r.bids[bid.ItemID] = append(r.bids[bid.ItemID], bid)

	for _, id := range r.userItems[bid.UserID] {
		if id == bid.ItemID {
			return nil
		}
	}
	r.userItems[bid.UserID] = append(r.userItems[bid.UserID], bid.ItemID)

	return nil
}

// GetBidsByItem returns all bids for an item in acceptance order
func (r *MemoryRepo) GetBidsByItem(_ context.Context, itemID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.items[itemID]; !ok {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return append([]model.Bid{}, r.bids[itemID]...), nil
}

// GetItemsByUser returns all items a user has bid on
func (r *MemoryRepo) GetItemsByUser(_ context.Context, userID string) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	itemIDs, ok := r.userItems[userID]
	if !ok || len(itemIDs) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	items := make([]model.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, exists := r.items[id]; exists {
			items = append(items, copyItem(item))
		}
	}
	return items, nil
}

func copyItem(item model.Item) model.Item {
	if item.ClosedAt != nil {
		closedAt := *item.ClosedAt
		item.ClosedAt = &closedAt
	}
	return item
}

func sortNewestFirst(items []model.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ItemID < items[j].ItemID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
