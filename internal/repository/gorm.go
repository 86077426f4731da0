package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedriver "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormRepo is an AuctionDB backed by a SQL database through gorm.
// Bid appends and closes run in transactions that lock the item row.
type GormRepo struct {
	db *gorm.DB
}

var _ AuctionDB = (*GormRepo)(nil)

// OpenSQLite opens (or creates) an embedded sqlite ledger at path.
// A single connection is used so writers queue instead of failing with SQLITE_BUSY.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlitedriver.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// OpenPostgres connects to a postgres ledger
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewGormRepo wraps an open gorm connection
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// AutoMigrate creates or updates the ledger tables
func (r *GormRepo) AutoMigrate(ctx context.Context) error {
	models := []any{
		&userRow{},
		&itemRow{},
		&bidRow{},
	}

	if err := r.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser registers a user with a unique username
func (r *GormRepo) CreateUser(ctx context.Context, user model.User) error {
	row := userRowFromModel(user)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("username_key = ?", row.UsernameKey).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return biddingerrors.ErrUserExists
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, biddingerrors.ErrUserExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("create user %s: %w", user.Username, biddingerrors.ErrUserExists)
	default:
		return fmt.Errorf("create user %s: %w", user.Username, translate(err))
	}
}

// GetUser returns a registered user by id
func (r *GormRepo) GetUser(ctx context.Context, userID string) (model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("get user %s: %w", userID, translate(err))
	}
	return row.toModel(), nil
}

// GetUserByName returns a registered user by username (case-insensitive)
func (r *GormRepo) GetUserByName(ctx context.Context, username string) (model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("username_key = ?", strings.ToLower(username)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, fmt.Errorf("get user by name %s: %w", username, biddingerrors.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("get user by name %s: %w", username, translate(err))
	}
	return row.toModel(), nil
}

// CreateItem stores a new auction item
func (r *GormRepo) CreateItem(ctx context.Context, item model.Item) error {
	if item.ItemID == "" {
		return fmt.Errorf("create item: %w - empty item ID", biddingerrors.ErrInvalidCreationParams)
	}

	row := itemRowFromModel(item)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create item %s: %w - duplicate item ID", item.ItemID, biddingerrors.ErrInvalidCreationParams)
		}
		return fmt.Errorf("create item %s: %w", item.ItemID, translate(err))
	}
	return nil
}

// GetItem returns an item by id
func (r *GormRepo) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	var row itemRow
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Item{}, fmt.Errorf("get item %s: %w", itemID, biddingerrors.ErrItemNotFound)
		}
		return model.Item{}, fmt.Errorf("get item %s: %w", itemID, translate(err))
	}
	return row.toModel(), nil
}

// ListItems returns all items, newest first
func (r *GormRepo) ListItems(ctx context.Context) ([]model.Item, error) {
	var rows []itemRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", translate(err))
	}

	items := make([]model.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].toModel()
	}
	return items, nil
}

// ListExpiredOpenItems returns active items whose close time is at or before now
func (r *GormRepo) ListExpiredOpenItems(ctx context.Context, now time.Time) ([]model.Item, error) {
	var rows []itemRow
	err := r.db.WithContext(ctx).
		Where("active = ? AND close_time <= ?", true, now.UTC()).
		Order("close_time").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list expired items: %w", translate(err))
	}

	items := make([]model.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].toModel()
	}
	return items, nil
}

// CloseItem flips an active item to closed
func (r *GormRepo) CloseItem(ctx context.Context, itemID string, closedAt time.Time) error {
	closedAt = closedAt.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row itemRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", itemID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return biddingerrors.ErrItemNotFound
			}
			return err
		}
		if !row.Active {
			return biddingerrors.ErrAlreadyClosed
		}

		return tx.Model(&itemRow{}).
			Where("id = ? AND active = ?", itemID, true).
			Updates(map[string]any{"active": false, "closed_at": closedAt}).Error
	})
	if err != nil {
		return fmt.Errorf("close item %s: %w", itemID, translate(err))
	}
	return nil
}

// RecordBidForItem appends a bid if the item exists and is still open
func (r *GormRepo) RecordBidForItem(ctx context.Context, bid model.Bid) error {
	row := bidRowFromModel(bid)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item itemRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", bid.ItemID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return biddingerrors.ErrItemNotFound
			}
			return err
		}
		if !item.Active {
			return biddingerrors.ErrItemClosed
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, translate(err))
	}
	return nil
}

// GetBidsByItem returns all bids for an item in acceptance order
func (r *GormRepo) GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error) {
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&itemRow{}).Where("id = ?", itemID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, translate(err))
	}
	if count == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}

	var rows []bidRow
	if err := db.Where("item_id = ?", itemID).Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, translate(err))
	}

	bids := make([]model.Bid, len(rows))
	for i := range rows {
		bids[i] = rows[i].toModel()
	}
	return bids, nil
}

// GetItemsByUser returns all items a user has bid on, in order of the user's first bid
func (r *GormRepo) GetItemsByUser(ctx context.Context, userID string) ([]model.Item, error) {
	db := r.db.WithContext(ctx)

	var itemIDs []string
	err := db.Model(&bidRow{}).
		Where("user_id = ?", userID).
		Group("item_id").
		Order("MIN(created_at)").
		Pluck("item_id", &itemIDs).Error
	if err != nil {
		return nil, fmt.Errorf("get items for user %s: %w", userID, translate(err))
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	var rows []itemRow
	if err := db.Where("id IN ?", itemIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get items for user %s: %w", userID, translate(err))
	}

	byID := make(map[string]model.Item, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].toModel()
	}
	items := make([]model.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// translate maps driver-level contention errors to ErrTransientConflict
func translate(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"sqlite_busy",
		"could not serialize access",
		"deadlock detected",
		"lock timeout",
		"canceling statement due to lock timeout",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", biddingerrors.ErrTransientConflict, err)
		}
	}
	return err
}
