package repository

import (
	model "auction-engine/internal/models"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type userRow struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Username    string    `gorm:"column:username;type:varchar(20);not null;<-:create"`
	UsernameKey string    `gorm:"column:username_key;type:varchar(20);not null;uniqueIndex;<-:create"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;<-:create"`
}

func (userRow) TableName() string { return "users" }

func (u *userRow) toModel() model.User {
	return model.User{
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

func userRowFromModel(u model.User) userRow {
	return userRow{
		ID:          u.UserID,
		Username:    u.Username,
		UsernameKey: strings.ToLower(u.Username),
		CreatedAt:   u.CreatedAt,
	}
}

type itemRow struct {
	ID            string          `gorm:"column:id;type:varchar(36);primaryKey"`
	Title         string          `gorm:"column:title;type:varchar(100);not null"`
	Description   string          `gorm:"column:description;type:text;not null"`
	StartingPrice decimal.Decimal `gorm:"column:starting_price;type:numeric(18,2);not null;<-:create"`
	OwnerID       string          `gorm:"column:owner_id;type:varchar(36);not null;index;<-:create"`
	CloseTime     time.Time       `gorm:"column:close_time;not null;index:idx_items_active_close,priority:2;<-:create"`
	Active        bool            `gorm:"column:active;not null;index:idx_items_active_close,priority:1"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;<-:create"`
	ClosedAt      *time.Time      `gorm:"column:closed_at"`
}

func (itemRow) TableName() string { return "items" }

func (i *itemRow) toModel() model.Item {
	return model.Item{
		ItemID:        i.ID,
		Title:         i.Title,
		Description:   i.Description,
		StartingPrice: i.StartingPrice,
		OwnerID:       i.OwnerID,
		CloseTime:     i.CloseTime.UTC(),
		Active:        i.Active,
		CreatedAt:     i.CreatedAt.UTC(),
		ClosedAt:      utcPtr(i.ClosedAt),
	}
}

func itemRowFromModel(i model.Item) itemRow {
	return itemRow{
		ID:            i.ItemID,
		Title:         i.Title,
		Description:   i.Description,
		StartingPrice: i.StartingPrice,
		OwnerID:       i.OwnerID,
		CloseTime:     i.CloseTime.UTC(),
		Active:        i.Active,
		CreatedAt:     i.CreatedAt.UTC(),
		ClosedAt:      utcPtr(i.ClosedAt),
	}
}

// bidRow columns are write-once
type bidRow struct {
	ID        string          `gorm:"column:id;type:varchar(36);primaryKey;<-:create"`
	ItemID    string          `gorm:"column:item_id;type:varchar(36);not null;index:idx_bids_item_created,priority:1;<-:create"`
	UserID    string          `gorm:"column:user_id;type:varchar(36);not null;index;<-:create"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null;<-:create"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;index:idx_bids_item_created,priority:2;<-:create"`
}

func (bidRow) TableName() string { return "bids" }

func (b *bidRow) toModel() model.Bid {
	return model.Bid{
		BidID:     b.ID,
		ItemID:    b.ItemID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC(),
	}
}

func bidRowFromModel(b model.Bid) bidRow {
	return bidRow{
		ID:        b.BidID,
		ItemID:    b.ItemID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
