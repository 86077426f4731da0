package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Helper to create a new open Item
func newItem(itemID, title string, startingPrice int64, closeIn time.Duration) model.Item {
	return model.Item{
		ItemID:        itemID,
		Title:         title,
		Description:   fmt.Sprintf("%s description", title),
		StartingPrice: decimal.NewFromInt(startingPrice),
		OwnerID:       "owner",
		CloseTime:     base.Add(closeIn),
		Active:        true,
		CreatedAt:     base,
	}
}

// Helper to create a new Bid
func newBid(bidID, itemID, userID string, amount int64, createdAt time.Time) model.Bid {
	return model.Bid{
		BidID:     bidID,
		ItemID:    itemID,
		UserID:    userID,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: createdAt,
	}
}

// testAuctionDB runs the behaviour every AuctionDB implementation shares.
// newStore must return an empty store.
func testAuctionDB(t *testing.T, newStore func(t *testing.T) AuctionDB) {
	t.Run("users", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		alice := model.User{UserID: "u1", Username: "Alice", CreatedAt: base}
		require.NoError(t, store.CreateUser(ctx, alice))

		err := store.CreateUser(ctx, model.User{UserID: "u2", Username: "alice", CreatedAt: base})
		require.ErrorIs(t, err, biddingerrors.ErrUserExists)

		got, err := store.GetUser(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "Alice", got.Username)

		got, err = store.GetUserByName(ctx, "ALICE")
		require.NoError(t, err)
		require.Equal(t, "u1", got.UserID)

		_, err = store.GetUser(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
		_, err = store.GetUserByName(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
	})

	t.Run("items", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		older := newItem("item1", "Item 1", 50, time.Hour)
		newer := newItem("item2", "Item 2", 0, 2*time.Hour)
		newer.CreatedAt = base.Add(time.Second)

		require.NoError(t, store.CreateItem(ctx, older))
		require.NoError(t, store.CreateItem(ctx, newer))
		require.ErrorIs(t, store.CreateItem(ctx, older), biddingerrors.ErrInvalidCreationParams)
		require.ErrorIs(t, store.CreateItem(ctx, model.Item{}), biddingerrors.ErrInvalidCreationParams)

		got, err := store.GetItem(ctx, "item1")
		require.NoError(t, err)
		require.Equal(t, "Item 1", got.Title)
		require.True(t, got.StartingPrice.Equal(decimal.NewFromInt(50)))
		require.True(t, got.CloseTime.Equal(older.CloseTime))
		require.True(t, got.Active)
		require.Nil(t, got.ClosedAt)

		_, err = store.GetItem(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)

		items, err := store.ListItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Equal(t, "item2", items[0].ItemID)
		require.Equal(t, "item1", items[1].ItemID)
	})

	t.Run("close_and_expiry", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.CreateItem(ctx, newItem("early", "Early", 1, time.Minute)))
		require.NoError(t, store.CreateItem(ctx, newItem("exact", "Exact", 1, 2*time.Minute)))
		require.NoError(t, store.CreateItem(ctx, newItem("late", "Late", 1, time.Hour)))

		expired, err := store.ListExpiredOpenItems(ctx, base.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 2)
		require.Equal(t, "early", expired[0].ItemID)
		require.Equal(t, "exact", expired[1].ItemID)

		closedAt := base.Add(3 * time.Minute)
		require.NoError(t, store.CloseItem(ctx, "early", closedAt))
		require.ErrorIs(t, store.CloseItem(ctx, "early", closedAt), biddingerrors.ErrAlreadyClosed)
		require.ErrorIs(t, store.CloseItem(ctx, "missing", closedAt), biddingerrors.ErrItemNotFound)

		got, err := store.GetItem(ctx, "early")
		require.NoError(t, err)
		require.False(t, got.Active)
		require.NotNil(t, got.ClosedAt)
		require.True(t, got.ClosedAt.Equal(closedAt))

		expired, err = store.ListExpiredOpenItems(ctx, base.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		require.Equal(t, "exact", expired[0].ItemID)
	})

	t.Run("bids", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.CreateItem(ctx, newItem("item1", "Item 1", 50, time.Hour)))
		require.NoError(t, store.CreateItem(ctx, newItem("item2", "Item 2", 50, time.Hour)))

		tests := []struct {
			name    string
			bid     model.Bid
			wantErr error
		}{
			{name: "valid_bid", bid: newBid("bid1", "item1", "user1", 100, base.Add(time.Second))},
			{name: "second_bid", bid: newBid("bid2", "item1", "user2", 120, base.Add(2*time.Second))},
			{name: "same_user_again", bid: newBid("bid3", "item1", "user1", 130, base.Add(3*time.Second))},
			{name: "other_item", bid: newBid("bid4", "item2", "user1", 60, base.Add(4*time.Second))},
			{name: "item_not_found", bid: newBid("bid5", "itemX", "user1", 50, base), wantErr: biddingerrors.ErrItemNotFound},
			{name: "empty_itemID", bid: newBid("bid6", "", "user1", 100, base), wantErr: biddingerrors.ErrItemNotFound},
		}
		for _, tc := range tests {
			err := store.RecordBidForItem(ctx, tc.bid)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, tc.name)
				continue
			}
			require.NoError(t, err, tc.name)
		}

		bids, err := store.GetBidsByItem(ctx, "item1")
		require.NoError(t, err)
		require.Len(t, bids, 3)
		for i, id := range []string{"bid1", "bid2", "bid3"} {
			require.Equal(t, id, bids[i].BidID)
		}
		require.True(t, bids[2].Amount.Equal(decimal.NewFromInt(130)))

		_, err = store.GetBidsByItem(ctx, "itemX")
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)

		items, err := store.GetItemsByUser(ctx, "user1")
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Equal(t, "item1", items[0].ItemID)
		require.Equal(t, "item2", items[1].ItemID)

		_, err = store.GetItemsByUser(ctx, "nobody")
		require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)

		require.NoError(t, store.CloseItem(ctx, "item1", base.Add(time.Hour)))
		err = store.RecordBidForItem(ctx, newBid("bid7", "item1", "user3", 500, base.Add(time.Hour)))
		require.ErrorIs(t, err, biddingerrors.ErrItemClosed)

		bids, err = store.GetBidsByItem(ctx, "item1")
		require.NoError(t, err)
		require.Len(t, bids, 3)
	})

	t.Run("unbid_item_has_empty_history", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.CreateItem(ctx, newItem("item1", "Item 1", 50, time.Hour)))
		bids, err := store.GetBidsByItem(ctx, "item1")
		require.NoError(t, err)
		require.Empty(t, bids)
	})
}

func TestMemoryRepo(t *testing.T) {
	t.Parallel()
	testAuctionDB(t, func(*testing.T) AuctionDB { return NewMemoryRepo() })
}

// Concurrent writes and reads must not race
func TestMemoryRepo_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateItem(ctx, newItem("item1", "Item 1", 0, time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			bid := newBid(fmt.Sprintf("bid-%d", i), "item1", fmt.Sprintf("user-%d", i%10), int64(i+1), base.Add(time.Duration(i)*time.Millisecond))
			require.NoError(t, repo.RecordBidForItem(ctx, bid))
		}(i)
		go func() {
			defer wg.Done()
			_, err := repo.GetBidsByItem(ctx, "item1")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	bids, err := repo.GetBidsByItem(ctx, "item1")
	require.NoError(t, err)
	require.Len(t, bids, 100)

	items, err := repo.GetItemsByUser(ctx, "user-3")
	require.NoError(t, err)
	require.Len(t, items, 1)
}

// Returned items must not alias stored state
func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateItem(ctx, newItem("item1", "Item 1", 0, time.Hour)))
	require.NoError(t, repo.CloseItem(ctx, "item1", base))

	got, err := repo.GetItem(ctx, "item1")
	require.NoError(t, err)
	*got.ClosedAt = base.Add(time.Hour)

	again, err := repo.GetItem(ctx, "item1")
	require.NoError(t, err)
	require.True(t, again.ClosedAt.Equal(base))
}
