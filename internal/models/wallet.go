package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds one user's balance in a single asset, denominated in the
// asset's smallest unit. Balances are only ever mutated by the ledger
// service while it holds the wallet lease plus a row lock.
type Wallet struct {
	ID        uint            `gorm:"primarykey"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_wallet_user_asset"`
	Asset     string          `gorm:"not null;uniqueIndex:idx_wallet_user_asset"`
	Balance   decimal.Decimal `gorm:"type:numeric(36,0);not null;default:0"`
	IsPrimary bool            `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
