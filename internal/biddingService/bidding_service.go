package bidding

import (
	"auction-engine/internal/auction"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
)

// Config tunes the service. Zero values fall back to DefaultConfig.
type Config struct {
	// RaiseIncrement is added to the current winning price by RaiseOwnBid
	RaiseIncrement decimal.Decimal
	// RetryMaxAttempts bounds attempts on ErrTransientConflict, including the first
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		RaiseIncrement:       decimal.NewFromInt(10),
		RetryMaxAttempts:     3,
		RetryInitialInterval: 20 * time.Millisecond,
	}
}

// ItemDetails is an auction snapshot with the winner's username resolved
type ItemDetails struct {
	auction.Snapshot
	WinnerName string `json:"winner_name,omitempty"`
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo     repository.AuctionDB
	registry *auction.Registry
	config   Config
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, registry *auction.Registry, config Config) *BiddingService {
	defaults := DefaultConfig()
	if !config.RaiseIncrement.IsPositive() {
		config.RaiseIncrement = defaults.RaiseIncrement
	}
	if config.RetryMaxAttempts < 1 {
		config.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if config.RetryInitialInterval <= 0 {
		config.RetryInitialInterval = defaults.RetryInitialInterval
	}

	return &BiddingService{
		repo:     repo,
		registry: registry,
		config:   config,
	}
}

// PlaceBid validates and records a user's bid for an item. It returns the
// accepted bid and the new winning price once the bid is durably recorded.
func (s *BiddingService) PlaceBid(ctx context.Context, itemID, userID string, amount decimal.Decimal) (models.Bid, decimal.Decimal, error) {
	if itemID == "" || userID == "" {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidBid)
	}
	if !models.HasMonetaryPrecision(amount) {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: %w - amount %s has more than %d decimal places",
			biddingerrors.ErrInvalidBid, amount, models.MonetaryPrecision)
	}

	bid, price, err := s.acceptBid(ctx, itemID, userID, func(*auction.Auction) decimal.Decimal {
		return amount
	})
	if err != nil {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: failed to record bid for item %s by user %s: %w", itemID, userID, err)
	}
	return bid, price, nil
}

// RaiseOwnBid bids the current winning price plus increment. A zero
// increment uses the configured default.
func (s *BiddingService) RaiseOwnBid(ctx context.Context, itemID, userID string, increment decimal.Decimal) (models.Bid, decimal.Decimal, error) {
	if itemID == "" || userID == "" {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidBid)
	}
	if increment.IsZero() {
		increment = s.config.RaiseIncrement
	}
	if !increment.IsPositive() || !models.HasMonetaryPrecision(increment) {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: %w - increment must be positive, got %s", biddingerrors.ErrInvalidBid, increment)
	}

	bid, price, err := s.acceptBid(ctx, itemID, userID, func(a *auction.Auction) decimal.Decimal {
		return a.CurrentWinningPrice().Add(increment)
	})
	if err != nil {
		return models.Bid{}, decimal.Zero, fmt.Errorf("service: failed to raise bid on item %s by user %s: %w", itemID, userID, err)
	}
	return bid, price, nil
}

// acceptBid runs one bid attempt per retry under the item lock. amountFn sees
// the locked auction so derived amounts are never computed from stale state.
func (s *BiddingService) acceptBid(ctx context.Context, itemID, userID string, amountFn func(*auction.Auction) decimal.Decimal) (models.Bid, decimal.Decimal, error) {
	var (
		bid   models.Bid
		price decimal.Decimal
	)
	err := s.retry(ctx, "place bid", func() error {
		return s.registry.WithItem(ctx, itemID, func(a *auction.Auction) error {
			accepted, err := a.AcceptBid(s.registry.NewID(), amountFn(a), userID, s.registry.Clock().Now())
			if err != nil {
				return err
			}
			bid = accepted
			price = a.CurrentWinningPrice()
			return nil
		})
	})
	return bid, price, err
}

// CreateItem lists a new item owned by ownerID
func (s *BiddingService) CreateItem(ctx context.Context, ownerID, title, description string, startingPrice decimal.Decimal, closeTime time.Time) (models.Item, error) {
	item, err := s.registry.Create(ctx, ownerID, title, description, startingPrice, closeTime)
	if err != nil {
		return models.Item{}, fmt.Errorf("service: failed to create item for user %s: %w", ownerID, err)
	}
	return item, nil
}

// CloseItem closes an item on behalf of requesterID
func (s *BiddingService) CloseItem(ctx context.Context, itemID, requesterID string) (models.Item, error) {
	if itemID == "" {
		return models.Item{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	var item models.Item
	err := s.retry(ctx, "close item", func() error {
		closed, err := s.registry.Close(ctx, itemID, requesterID)
		item = closed
		return err
	})
	if err != nil {
		return models.Item{}, fmt.Errorf("service: failed to close item %s: %w", itemID, err)
	}
	return item, nil
}

// Sweep closes every expired open item and returns how many were closed
func (s *BiddingService) Sweep(ctx context.Context) (int, error) {
	n, err := s.registry.Sweep(ctx, s.registry.Clock().Now())
	if err != nil {
		return n, fmt.Errorf("service: sweep: %w", err)
	}
	return n, nil
}

// GetItem returns an item with its bids, derived price and winner
func (s *BiddingService) GetItem(ctx context.Context, itemID string) (ItemDetails, error) {
	if itemID == "" {
		return ItemDetails{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	snap, err := s.registry.Get(ctx, itemID)
	if err != nil {
		return ItemDetails{}, fmt.Errorf("service: failed to get item %s: %w", itemID, err)
	}
	return s.details(ctx, snap), nil
}

// ListItems returns every item, newest first
func (s *BiddingService) ListItems(ctx context.Context) ([]ItemDetails, error) {
	snaps, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list items: %w", err)
	}

	items := make([]ItemDetails, len(snaps))
	for i, snap := range snaps {
		items[i] = s.details(ctx, snap)
	}
	return items, nil
}

func (s *BiddingService) details(ctx context.Context, snap auction.Snapshot) ItemDetails {
	details := ItemDetails{Snapshot: snap}
	if snap.Winner == nil {
		return details
	}

	user, err := s.repo.GetUser(ctx, snap.Winner.UserID)
	if err != nil {
		if !errors.Is(err, biddingerrors.ErrUserNotFound) {
			utils.Warn("BiddingService: failed to resolve winner", map[string]any{
				"item_id": snap.Item.ItemID,
				"user_id": snap.Winner.UserID,
				"error":   err.Error(),
			})
		}
		return details
	}
	details.WinnerName = user.Username
	return details
}

// RegisterUser creates a user with a unique username
func (s *BiddingService) RegisterUser(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return models.User{}, fmt.Errorf("service: %w - got %d", biddingerrors.ErrInvalidUsername, n)
	}

	user := models.User{
		UserID:    s.registry.NewID(),
		Username:  username,
		CreatedAt: s.registry.Clock().Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to register user %s: %w", username, err)
	}
	return user, nil
}

// GetUser returns a registered user
func (s *BiddingService) GetUser(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrUserNotFound)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to get user %s: %w", userID, err)
	}
	return user, nil
}

// GetBidsForItem returns all bids for a specific item
func (s *BiddingService) GetBidsForItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for a specific item
func (s *BiddingService) GetWinningBid(ctx context.Context, itemID string) (models.Bid, error) {
	bids, err := s.GetBidsForItem(ctx, itemID)
	if err != nil {
		return models.Bid{}, err
	}

	winningBid, ok := auction.WinningBid(bids)
	if !ok {
		return models.Bid{}, fmt.Errorf("service: item %s: %w", itemID, biddingerrors.ErrNoBids)
	}

	return winningBid, nil
}

// GetItemsByUser returns all items a user has placed bids on
func (s *BiddingService) GetItemsByUser(ctx context.Context, userID string) ([]models.Item, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	items, err := s.repo.GetItemsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
	}

	return items, nil
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent
func (s *BiddingService) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.RetryInitialInterval
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempts := 0
	return backoff.RetryNotify(
		func() error {
			attempts++
			err := fn()
			if err != nil && !biddingerrors.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.config.RetryMaxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			utils.Warn("BiddingService: transient conflict, retrying", map[string]any{
				"operation": op,
				"attempt":   attempts,
				"wait":      wait.String(),
				"error":     err.Error(),
			})
		},
	)
}
